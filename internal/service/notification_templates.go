package service

import "github.com/noah-isme/skillmentorx-api/pkg/mailer"

var (
	welcomeTemplate = mailer.MustTemplate("welcome", "Welcome to SkillMentorX",
		`Hi {{.Name}},

Your account is ready. Sign in at {{.Link}} to pick your role and get started.`,
		`<p>Hi {{.Name}},</p><p>Your account is ready. <a href="{{.Link}}">Sign in</a> to pick your role and get started.</p>`)

	passwordResetTemplate = mailer.MustTemplate("password_reset", "Reset your password",
		`Hi {{.Name}},

Use the link below to choose a new password. It expires in {{.Expiry}}.

{{.Link}}

If you did not ask for this you can ignore this email.`,
		`<p>Hi {{.Name}},</p><p>Use the link below to choose a new password. It expires in {{.Expiry}}.</p><p><a href="{{.Link}}">Reset password</a></p><p>If you did not ask for this you can ignore this email.</p>`)

	requestAssignedTemplate = mailer.MustTemplate("request_assigned", "A mentorship request was assigned to you",
		`Hi {{.Name}},

You have been assigned a {{.Category}} request ({{.Stack}}). Open {{.Link}} to reply.`,
		`<p>Hi {{.Name}},</p><p>You have been assigned a <strong>{{.Category}}</strong> request ({{.Stack}}).</p><p><a href="{{.Link}}">Open request</a></p>`)

	requestRepliedTemplate = mailer.MustTemplate("request_replied", "Your mentor replied",
		`Hi {{.Name}},

Your mentor replied to your {{.Category}} request:

{{.Text}}

Continue at {{.Link}}`,
		`<p>Hi {{.Name}},</p><p>Your mentor replied to your <strong>{{.Category}}</strong> request:</p><blockquote>{{.Text}}</blockquote><p><a href="{{.Link}}">Continue</a></p>`)

	requestResolvedTemplate = mailer.MustTemplate("request_resolved", "Your mentorship request was resolved",
		`Hi {{.Name}},

Your {{.Category}} request has been marked resolved. Thanks for learning with us. {{.Link}}`,
		`<p>Hi {{.Name}},</p><p>Your <strong>{{.Category}}</strong> request has been marked resolved. Thanks for learning with us.</p><p><a href="{{.Link}}">View request</a></p>`)
)
