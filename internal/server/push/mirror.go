package push

import (
	"errors"
	"fmt"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
)

// Mirror forwards fired timer messages to additional shoutrrr notifiers.
type Mirror struct {
	urls []string
}

// ValidateNotifierURLs checks that every url maps to a known shoutrrr service.
func ValidateNotifierURLs(urls []string) error {
	serviceRouter := router.ServiceRouter{}
	for _, url := range urls {
		_, err := serviceRouter.Locate(url)
		if err != nil {
			return fmt.Errorf("invalid notifier URL %q: %w", url, err)
		}
	}

	return nil
}

// NewMirror returns a Mirror for urls, or nil when urls is empty.
func NewMirror(urls []string) (*Mirror, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	err := ValidateNotifierURLs(urls)
	if err != nil {
		return nil, err
	}

	return &Mirror{urls: urls}, nil
}

// Send delivers message to every notifier, attempting all of them before returning.
func (m *Mirror) Send(message string) error {
	if m == nil {
		return nil
	}

	var errs []error
	for _, url := range m.urls {
		sender, err := shoutrrr.CreateSender(url)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to create notifier: %w", err))
			continue
		}

		for _, sendErr := range sender.Send(message, nil) {
			if sendErr != nil {
				errs = append(errs, sendErr)
			}
		}
	}

	return errors.Join(errs...)
}
