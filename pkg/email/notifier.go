package email

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/dmitrymomot/licensekit/pkg/issuance"
	"github.com/dmitrymomot/licensekit/pkg/license"
)

// licenseIssuedTmpl is deliberately plain: transactional mail renders more
// reliably without CSS frameworks.
var licenseIssuedTmpl = template.Must(template.New("license_issued").Parse(`<html>
<body>
	<p>Hi {{.Name}},</p>
	<p>Your {{.Plan}} license is ready. Redeem it with the key below:</p>
	<p style="font-size:1.4em;font-family:monospace"><strong>{{.Key}}</strong></p>
	<p>License ID: {{.LicenseID}}<br>
	Valid until: {{.ExpiresAt}}</p>
</body>
</html>`))

// LicenseNotifier emails the owner when a license is issued. It implements
// the issuance job's notification boundary.
type LicenseNotifier struct {
	sender Sender
}

// NewLicenseNotifier creates a notifier over the given transport.
func NewLicenseNotifier(sender Sender) (*LicenseNotifier, error) {
	if sender == nil {
		return nil, fmt.Errorf("%w: sender is required", ErrInvalidConfig)
	}
	return &LicenseNotifier{sender: sender}, nil
}

// LicenseIssued sends the redemption key to the license owner.
func (n *LicenseNotifier) LicenseIssued(ctx context.Context, user *issuance.User, lic *license.License) error {
	name := user.Name
	if name == "" {
		name = "there"
	}

	var body strings.Builder
	err := licenseIssuedTmpl.Execute(&body, map[string]string{
		"Name":      name,
		"Plan":      string(lic.Plan),
		"Key":       lic.Key,
		"LicenseID": lic.LicenseID,
		"ExpiresAt": lic.ExpiresAt.Format("January 2, 2006"),
	})
	if err != nil {
		return fmt.Errorf("render license email: %w", err)
	}

	return n.sender.SendEmail(ctx, SendEmailParams{
		SendTo:   user.Email,
		Subject:  "Your license key",
		BodyHTML: body.String(),
		Tag:      "license-issued",
	})
}
