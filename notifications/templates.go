package notifications

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// Template names a transactional email.
type Template string

const (
	TemplateSignupWelcome           Template = "signup-welcome"
	TemplateReferralCreated         Template = "referral-created"
	TemplateEstimateAdminNotify     Template = "estimate-admin-notify"
	TemplateEstimateCustomerConfirm Template = "estimate-customer-confirm"
	TemplateReferralUsed            Template = "referral-used"
	TemplateEstimateStatusUpdate    Template = "estimate-status-update"
)

const brand = "Sergio Diaz Custom Painting"

type emailTemplate struct {
	subject *texttemplate.Template
	body    *htmltemplate.Template
}

var templates = map[Template]emailTemplate{
	TemplateSignupWelcome: mustTemplate(
		"Welcome to "+brand,
		`<h1>Welcome, {{.name}}!</h1><p>Thanks for creating an account with `+brand+`. You can now request estimates and share referral codes with friends.</p>`,
	),
	TemplateReferralCreated: mustTemplate(
		"Your referral code — "+brand,
		`<h1>Your referral code is ready</h1><p>Hi {{.name}}, share the code <b>{{.code}}</b> or this link: <a href="{{.url}}">{{.url}}</a></p>`,
	),
	TemplateEstimateAdminNotify: mustTemplate(
		"New Estimate Request — {{.full_name}}",
		`<h1>New estimate request</h1>
<p><b>{{.full_name}}</b> &lt;{{.email}}&gt; {{.phone}}</p>
<p>{{.address}}</p>
<p><b>Budget:</b> {{.budget}}</p>
<p><b>Scope:</b> {{.scope}}</p>
{{if .referral_code}}<p><b>Referral code:</b> {{.referral_code}} ({{if eq .referral_matched "true"}}matched{{else}}unmatched{{end}})</p>{{end}}
<p>Estimate ID: {{.estimate_id}}</p>`,
	),
	TemplateEstimateCustomerConfirm: mustTemplate(
		"Estimate Request Received — "+brand,
		`<h1>Thanks, {{.full_name}}!</h1><p>We received your estimate request and will contact you shortly.</p><p><b>Scope:</b> {{.scope}}</p>`,
	),
	TemplateReferralUsed: mustTemplate(
		"Your referral was used!",
		`<h1>Good news!</h1><p>Your referral code <b>{{.code}}</b> was just used{{if .customer_name}} by {{.customer_name}}{{end}}. Thank you for spreading the word.</p>`,
	),
	TemplateEstimateStatusUpdate: mustTemplate(
		"Estimate Status Update — "+brand,
		`<h1>Hi {{.full_name}},</h1><p>Your estimate request is now <b>{{.status}}</b>.</p>`,
	),
}

// Templates lists every known template.
func Templates() []Template {
	out := make([]Template, 0, len(templates))
	for name := range templates {
		out = append(out, name)
	}
	return out
}

func (t Template) Valid() bool {
	_, ok := templates[t]
	return ok
}

// Render fills a template. Missing context keys render as empty strings.
func Render(name Template, data map[string]string) (subject, html string, err error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}
	if data == nil {
		data = map[string]string{}
	}

	var subj bytes.Buffer
	if err := tmpl.subject.Execute(&subj, data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	var body bytes.Buffer
	if err := tmpl.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, err)
	}
	return subj.String(), body.String(), nil
}

func mustTemplate(subject, body string) emailTemplate {
	return emailTemplate{
		subject: texttemplate.Must(texttemplate.New("subject").Option("missingkey=zero").Parse(subject)),
		body:    htmltemplate.Must(htmltemplate.New("body").Option("missingkey=zero").Parse(body)),
	}
}
