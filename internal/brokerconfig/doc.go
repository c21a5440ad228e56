// Package brokerconfig holds the broker connection parameters collected
// during provisioning and persists them on the device's file store.
//
// # Record Format
//
// The record is a flat JSON object stored at /config.json on the volume:
//
//	{
//	  "mqtt_server":   "10.0.1.50",
//	  "mqtt_port":     "1883",
//	  "mqtt_username": "sensor",
//	  "mqtt_password": "secret"
//	}
//
// All four keys are required; the empty string is a valid value. Field
// values are bounded at 39/5/49/49 bytes and the whole file at 1024 bytes.
//
// # Failure Policy
//
// Load and Save are attempted once per boot. Every failure is a *ConfigError
// whose Type tells the caller what happened (storage unavailable, not found,
// too large, malformed, write failed). Callers are expected to fall back to
// Defaults() rather than abort:
//
//	cfg, err := store.Load()
//	if err != nil {
//	    cfg = brokerconfig.Defaults()
//	}
//
// A malformed record is discarded as a whole; fields are never salvaged one
// by one.
package brokerconfig
