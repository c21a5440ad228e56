package brokerconfig

import (
	"fmt"
)

// Byte ceilings of the persisted fields. They come from the fixed-size
// buffers of the on-device record and are part of the format contract.
const (
	MaxBrokerAddressLen = 39
	MaxBrokerPortLen    = 5
	MaxUsernameLen      = 49
	MaxPasswordLen      = 49
)

// Keys of the persisted record
const (
	KeyServer   = "mqtt_server"
	KeyPort     = "mqtt_port"
	KeyUsername = "mqtt_username"
	KeyPassword = "mqtt_password"
)

// Form ids of the parameters
const (
	FieldServer   = "server"
	FieldPort     = "port"
	FieldUsername = "username"
	FieldPassword = "password"
)

// Compiled-in defaults used until a record is loaded or submitted.
const (
	DefaultBrokerAddress = "xxx.xxx.xxx.xxx"
	DefaultBrokerPort    = "1883"
	DefaultUsername      = "mqtt_user_name"
	DefaultPassword      = "mqtt_password"
)

// ConnectionConfig holds the broker connection parameters collected from
// the operator. The empty string is a legal value for every field and is
// the "unconfigured" sentinel for BrokerAddress and BrokerPort.
type ConnectionConfig struct {
	BrokerAddress string `json:"mqtt_server"`
	BrokerPort    string `json:"mqtt_port"`
	Username      string `json:"mqtt_username"`
	Password      string `json:"mqtt_password"`
}

// Defaults returns the compiled-in configuration
func Defaults() ConnectionConfig {
	return ConnectionConfig{
		BrokerAddress: DefaultBrokerAddress,
		BrokerPort:    DefaultBrokerPort,
		Username:      DefaultUsername,
		Password:      DefaultPassword,
	}
}

// New builds a ConnectionConfig, rejecting values that exceed the field
// bounds or a port that is not decimal digits.
func New(address, port, username, password string) (ConnectionConfig, error) {
	cfg := ConnectionConfig{
		BrokerAddress: address,
		BrokerPort:    port,
		Username:      username,
		Password:      password,
	}
	if errs := Validate(cfg); len(errs) > 0 {
		return ConnectionConfig{}, errs[0]
	}
	return cfg, nil
}

// Usable reports whether the device can attempt a broker connection with
// this configuration: both the address and the port must be non-empty.
// Username and password do not take part in the decision.
func (c ConnectionConfig) Usable() bool {
	return c.BrokerAddress != "" && c.BrokerPort != ""
}

// String returns a human-readable summary with the password redacted.
func (c ConnectionConfig) String() string {
	password := ""
	if c.Password != "" {
		password = "********"
	}
	return fmt.Sprintf("broker=%s:%s username=%q password=%q",
		c.BrokerAddress, c.BrokerPort, c.Username, password)
}

// Field describes one configurable parameter as presented on the portal
// form.
type Field struct {
	ID        string // Form field name
	Label     string // Placeholder / label text
	MaxLength int    // Maximum length in bytes
	Secret    bool   // Rendered as a password input and never echoed back
}

// Fields lists the form parameters in display order.
var Fields = []Field{
	{ID: FieldServer, Label: "mqtt server", MaxLength: MaxBrokerAddressLen},
	{ID: FieldPort, Label: "mqtt port", MaxLength: MaxBrokerPortLen},
	{ID: FieldUsername, Label: "mqtt username", MaxLength: MaxUsernameLen},
	{ID: FieldPassword, Label: "mqtt password", MaxLength: MaxPasswordLen, Secret: true},
}

// Value returns the current value of the field with the given form id.
func (c ConnectionConfig) Value(id string) string {
	switch id {
	case FieldServer:
		return c.BrokerAddress
	case FieldPort:
		return c.BrokerPort
	case FieldUsername:
		return c.Username
	case FieldPassword:
		return c.Password
	default:
		return ""
	}
}

// With returns a copy of c with the field identified by form id replaced.
// Unknown ids leave the copy unchanged.
func (c ConnectionConfig) With(id, value string) ConnectionConfig {
	switch id {
	case FieldServer:
		c.BrokerAddress = value
	case FieldPort:
		c.BrokerPort = value
	case FieldUsername:
		c.Username = value
	case FieldPassword:
		c.Password = value
	}
	return c
}
