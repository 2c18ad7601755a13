package services

import (
	"bytes"
	"fmt"
	"net/smtp"
	"text/template"

	"github.com/nocturne-lab/projecthub/internal/config"
	"github.com/nocturne-lab/projecthub/internal/models"
)

// Mailer sends a templated email for one notification kind. Sending is
// best effort: callers log failures and move on.
type Mailer interface {
	SendTemplatedEmail(toAddress string, kind models.NotificationType, data map[string]interface{}) error
}

type emailTemplate struct {
	subject string
	body    *template.Template
}

// SMTPMailer renders per-kind templates and delivers them over SMTP.
type SMTPMailer struct {
	addr      string
	auth      smtp.Auth
	from      string
	templates map[models.NotificationType]emailTemplate
}

// NewSMTPMailer creates a mailer from SMTP settings in the config.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}

	return &SMTPMailer{
		addr:      cfg.SMTPHost + ":" + cfg.SMTPPort,
		auth:      auth,
		from:      cfg.EmailFrom,
		templates: buildEmailTemplates(),
	}
}

// SendTemplatedEmail renders the template for kind and sends it.
func (m *SMTPMailer) SendTemplatedEmail(toAddress string, kind models.NotificationType, data map[string]interface{}) error {
	tmpl, ok := m.templates[kind]
	if !ok {
		tmpl = m.templates[models.NotificationProjectUpdate]
	}

	var body bytes.Buffer
	if err := tmpl.body.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render email template %s: %w", kind, err)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.from, toAddress, tmpl.subject, body.String())

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{toAddress}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toAddress, err)
	}
	return nil
}

func buildEmailTemplates() map[models.NotificationType]emailTemplate {
	mk := func(name, body string) *template.Template {
		return template.Must(template.New(name).Parse(body))
	}

	return map[models.NotificationType]emailTemplate{
		models.NotificationTaskAssigned: {
			subject: "You have been assigned a task",
			body:    mk("task_assigned", "Hi,\n\nYou were assigned to the task \"{{.Title}}\"{{if .ProjectName}} in project {{.ProjectName}}{{end}}.\n\n{{.Message}}\n"),
		},
		models.NotificationStatusUpdate: {
			subject: "A task you follow changed status",
			body:    mk("status_update", "Hi,\n\nThe task \"{{.Title}}\" changed status.\n\n{{.Message}}\n"),
		},
		models.NotificationCommentAdded: {
			subject: "New comment on a task you follow",
			body:    mk("comment_added", "Hi,\n\nA new comment was posted on \"{{.Title}}\".\n\n{{.Message}}\n"),
		},
		models.NotificationMention: {
			subject: "You were mentioned",
			body:    mk("mention", "Hi,\n\nYou were mentioned on \"{{.Title}}\".\n\n{{.Message}}\n"),
		},
		models.NotificationDeadlineReminder: {
			subject: "Upcoming deadline",
			body:    mk("deadline_reminder", "Hi,\n\nThe task \"{{.Title}}\" is due soon.\n\n{{.Message}}\n"),
		},
		models.NotificationMilestoneDue: {
			subject: "Milestone due soon",
			body:    mk("milestone_due", "Hi,\n\nThe milestone \"{{.Title}}\" is approaching its due date.\n\n{{.Message}}\n"),
		},
		models.NotificationIssueAssigned: {
			subject: "You have been assigned an issue",
			body:    mk("issue_assigned", "Hi,\n\nYou were assigned to the issue \"{{.Title}}\".\n\n{{.Message}}\n"),
		},
		models.NotificationTimesheetApproved: {
			subject: "Your timesheet was approved",
			body:    mk("timesheet_approved", "Hi,\n\nYour time entry on \"{{.Title}}\" was approved.\n\n{{.Message}}\n"),
		},
		models.NotificationDependencyBlocked: {
			subject: "A task you follow is blocked",
			body:    mk("dependency_blocked", "Hi,\n\nThe task \"{{.Title}}\" is blocked by unfinished dependencies.\n\n{{.Message}}\n"),
		},
		models.NotificationWatcherUpdate: {
			subject: "Update on a task you watch",
			body:    mk("watcher_update", "Hi,\n\nThe task \"{{.Title}}\" was updated.\n\n{{.Message}}\n"),
		},
		models.NotificationProjectUpdate: {
			subject: "Project update",
			body:    mk("project_update", "Hi,\n\n{{.Title}}\n\n{{.Message}}\n"),
		},
	}
}
