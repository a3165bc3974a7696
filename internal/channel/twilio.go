package channel

import (
	"errors"

	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
)

// TwilioError classifies an error returned by the Twilio REST API.
func TwilioError(ch delivery.Channel, err error) error {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		return StatusError(ch, restErr.Status, err)
	}
	return ProviderError(ch, err)
}
