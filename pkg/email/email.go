package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"
)

type EmailService struct {
	apiKey    string
	from      string
	templates *template.Template
}

type EmailData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Html    string `json:"html"`
}

type SubscriptionStartedData struct {
	FullName  string
	PlanType  string
	Price     float64
	ExpiresAt time.Time
	IsRenewal bool
}

type SubscriptionCancelledData struct {
	FullName  string
	PlanType  string
	ExpiresAt time.Time
}

type SubscriptionExpiryWarningData struct {
	FullName   string
	PlanType   string
	DaysLeft   int
	ExpiryDate time.Time
}

type TeacherWelcomeData struct {
	FullName     string
	DirectorName string
	SchoolName   string
}

type PasswordResetData struct {
	ResetLink string
}

func NewEmailService(apiKey, from string) (*EmailService, error) {
	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	return &EmailService{
		apiKey:    apiKey,
		from:      from,
		templates: templates,
	}, nil
}

func (s *EmailService) send(to, subject, templateName string, data interface{}) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("could not render template %s: %w", templateName, err)
	}

	payload, err := json.Marshal(EmailData{
		From:    s.from,
		To:      to,
		Subject: subject,
		Html:    body.String(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, "https://api.resend.com/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email API returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (s *EmailService) SendSubscriptionStartedEmail(to string, data SubscriptionStartedData) error {
	subject := "Sua assinatura está ativa"
	if data.IsRenewal {
		subject = "Sua assinatura foi renovada"
	}
	return s.send(to, subject, "subscription_started.html", data)
}

func (s *EmailService) SendSubscriptionCancelledEmail(to string, data SubscriptionCancelledData) error {
	return s.send(to, "Sua assinatura foi cancelada", "subscription_cancelled.html", data)
}

func (s *EmailService) SendSubscriptionExpiryWarning(to string, data SubscriptionExpiryWarningData) error {
	subject := fmt.Sprintf("Sua assinatura expira em %d dias", data.DaysLeft)
	return s.send(to, subject, "subscription_expiry_warning.html", data)
}

func (s *EmailService) SendTeacherWelcomeEmail(to string, data TeacherWelcomeData) error {
	return s.send(to, "Bem-vindo(a) ao PeiPlan", "teacher_welcome.html", data)
}

func (s *EmailService) SendPasswordResetEmail(to string, data PasswordResetData) error {
	return s.send(to, "Redefinição de senha", "password_reset.html", data)
}
