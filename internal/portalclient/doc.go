// Package portalclient talks to a running provisioning portal from an
// operator machine joined to the device's access point.
//
// # Usage Example
//
//	client := portalclient.NewClient("10.42.0.1", 80)
//
//	info, err := client.Info(ctx)
//	if err != nil {
//	    fmt.Println(portalclient.GetTroubleshootingHint(err))
//	    return err
//	}
//
//	port := "1883"
//	err = client.Submit(ctx, portalclient.Submission{
//	    SSID:       "HomeNet",
//	    Passphrase: "password1",
//	    BrokerPort: &port,
//	})
//
// # Error Handling
//
// Every error is a *ClientError classified by ErrorType. Network failures,
// timeouts and 5xx answers are retried with exponential backoff; rejected
// forms (422) and repeated submissions (409) are not.
package portalclient
