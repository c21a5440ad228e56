package portal

import (
	"fmt"
	"net/url"

	"github.com/swartninja/provisioner/internal/brokerconfig"
	"github.com/swartninja/provisioner/internal/radio"
)

// Form field names of the network credentials
const (
	FieldSSID       = "s"
	FieldPassphrase = "p"
)

// WiFi credential bounds (IEEE 802.11 SSID and WPA2-PSK passphrase)
const (
	MaxSSIDLen       = 32
	MinPassphraseLen = 8
	MaxPassphraseLen = 63
)

// Param is one configurable parameter as rendered on the form
type Param struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	MaxLength int    `json:"max_length"`
	Secret    bool   `json:"secret,omitempty"`
}

// Params returns the form parameters pre-filled from cfg
func Params(cfg brokerconfig.ConnectionConfig) []Param {
	params := make([]Param, 0, len(brokerconfig.Fields))
	for _, f := range brokerconfig.Fields {
		params = append(params, Param{
			ID:        f.ID,
			Label:     f.Label,
			Value:     cfg.Value(f.ID),
			MaxLength: f.MaxLength,
			Secret:    f.Secret,
		})
	}
	return params
}

// publicParams is Params with secret values blanked
func publicParams(cfg brokerconfig.ConnectionConfig) []Param {
	params := Params(cfg)
	for i := range params {
		if params[i].Secret {
			params[i].Value = ""
		}
	}
	return params
}

// Submission is a validated form post
type Submission struct {
	Credentials radio.Credentials
	Config      brokerconfig.ConnectionConfig
}

// ParseSubmission applies the posted form values on top of prefill. Fields
// absent from the form keep their prefill value; a field posted empty
// becomes empty. Returns every validation error found.
func ParseSubmission(form url.Values, prefill brokerconfig.ConnectionConfig) (Submission, []error) {
	cfg := prefill
	for _, f := range brokerconfig.Fields {
		if values, ok := form[f.ID]; ok && len(values) > 0 {
			cfg = cfg.With(f.ID, values[0])
		}
	}

	sub := Submission{
		Credentials: radio.Credentials{
			SSID:       form.Get(FieldSSID),
			Passphrase: form.Get(FieldPassphrase),
		},
		Config: cfg,
	}

	errs := brokerconfig.Validate(cfg)
	errs = append(errs, validateCredentials(sub.Credentials)...)
	return sub, errs
}

func validateCredentials(creds radio.Credentials) []error {
	var errs []error
	if len(creds.SSID) > MaxSSIDLen {
		errs = append(errs, brokerconfig.NewValidationError(
			fmt.Sprintf("network name too long (max %d bytes): %d bytes", MaxSSIDLen, len(creds.SSID))))
	}
	if n := len(creds.Passphrase); n > 0 && (n < MinPassphraseLen || n > MaxPassphraseLen) {
		errs = append(errs, brokerconfig.NewValidationError(
			fmt.Sprintf("network password must be %d to %d characters", MinPassphraseLen, MaxPassphraseLen)))
	}
	if creds.SSID == "" && creds.Passphrase != "" {
		errs = append(errs, brokerconfig.NewValidationError("network password given without a network name"))
	}
	return errs
}
