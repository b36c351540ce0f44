// Package mailer renders digest and account emails from embedded templates
// and hands them to an email provider for delivery.
package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"roomdigest/internal/types"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// RenderedEmail holds the pre-rendered email content ready for transmission.
type RenderedEmail struct {
	Subject  string
	BodyHTML string
	BodyText string
}

// AccountEmailKind selects which account email to render. Each kind carries a
// link the recipient must follow to confirm the operation.
type AccountEmailKind string

const (
	AccountEmailPasswordReset AccountEmailKind = "password_reset"
	AccountEmailRegistration  AccountEmailKind = "registration"
	AccountEmailAddEmail      AccountEmailKind = "add_email"
)

// accountEmailCopy is the per-kind subject and intro line for account emails.
var accountEmailCopy = map[AccountEmailKind]struct {
	subject string
	intro   string
}{
	AccountEmailPasswordReset: {
		subject: "Password reset",
		intro:   "A password reset was requested for your account. To change your password, click the link below.",
	},
	AccountEmailRegistration: {
		subject: "Confirm your email address",
		intro:   "You have asked us to register this email address with a new account. To confirm it, click the link below.",
	},
	AccountEmailAddEmail: {
		subject: "Confirm your email address",
		intro:   "You have asked us to add this email address to your account. To confirm it, click the link below.",
	},
}

// senderColors is the palette for sender display names; a sender's hash picks
// a stable color.
var senderColors = []string{"#64bf5c", "#81bdd5", "#bf642f", "#d093bd", "#91A452"}

// defaultAvatars are the bundled fallback avatar images for senders without
// one; a sender's hash picks a stable image.
var defaultAvatars = []string{
	"https://riot.im/img/external/avatar-1.png",
	"https://riot.im/img/external/avatar-2.png",
	"https://riot.im/img/external/avatar-3.png",
}

// Renderer performs email rendering with Go templates embedded in the binary.
// HTML bodies go through html/template so everything except the sanitized
// message HTML is escaped.
type Renderer struct {
	digestHTML  *template.Template
	digestText  *texttemplate.Template
	accountHTML *template.Template
	accountText *texttemplate.Template

	mediaBaseURL string
	fromAddr     string
	fromName     string
}

// RendererConfig holds the parameters needed to construct a Renderer.
type RendererConfig struct {
	// MediaBaseURL is the public base URL used to turn mxc:// content URIs
	// into fetchable thumbnail links. No trailing slash.
	MediaBaseURL string
	FromAddr     string
	FromName     string
}

// NewRenderer parses the embedded templates and returns a Renderer.
// Returns an error if any template fails to parse.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	r := &Renderer{
		mediaBaseURL: strings.TrimRight(cfg.MediaBaseURL, "/"),
		fromAddr:     cfg.FromAddr,
		fromName:     cfg.FromName,
	}

	funcs := template.FuncMap{
		"formatTime":  formatTime,
		"formatDay":   formatDay,
		"mxcToHTTP":   r.mxcToHTTP,
		"avatarURL":   r.avatarURL,
		"senderColor": senderColor,
	}

	var err error
	r.digestHTML, err = parseHTML("digest", funcs)
	if err != nil {
		return nil, err
	}
	r.accountHTML, err = parseHTML("token_link", funcs)
	if err != nil {
		return nil, err
	}

	textFuncs := texttemplate.FuncMap{
		"formatTime": formatTime,
		"formatDay":  formatDay,
	}
	r.digestText, err = parseText("digest", textFuncs)
	if err != nil {
		return nil, err
	}
	r.accountText, err = parseText("token_link", textFuncs)
	if err != nil {
		return nil, err
	}

	return r, nil
}

func parseHTML(name string, funcs template.FuncMap) (*template.Template, error) {
	content, err := templateFS.ReadFile(fmt.Sprintf("templates/%s.html", name))
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read %s.html: %w", name, err)
	}
	tmpl, err := template.New(name).Funcs(funcs).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse %s.html: %w", name, err)
	}
	return tmpl, nil
}

func parseText(name string, funcs texttemplate.FuncMap) (*texttemplate.Template, error) {
	content, err := templateFS.ReadFile(fmt.Sprintf("templates/%s.txt", name))
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read %s.txt: %w", name, err)
	}
	tmpl, err := texttemplate.New(name).Funcs(funcs).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse %s.txt: %w", name, err)
	}
	return tmpl, nil
}

// Sender returns the From identity used for all outgoing mail.
func (r *Renderer) Sender() types.SenderIdentity {
	return types.SenderIdentity{Address: r.fromAddr, Name: r.fromName}
}

// RenderDigest renders the digest view model into a complete email. The
// summary line doubles as the subject.
func (r *Renderer) RenderDigest(mail *types.DigestMail) (*RenderedEmail, error) {
	if mail == nil {
		return nil, types.NewAppError(types.ErrCodeInternalRender, "digest mail is nil", nil)
	}

	var htmlBuf bytes.Buffer
	if err := r.digestHTML.Execute(&htmlBuf, mail); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalRender, "failed to render digest HTML", err)
	}

	var txtBuf bytes.Buffer
	if err := r.digestText.Execute(&txtBuf, mail); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalRender, "failed to render digest text", err)
	}

	return &RenderedEmail{
		Subject:  mail.SummaryText,
		BodyHTML: htmlBuf.String(),
		BodyText: txtBuf.String(),
	}, nil
}

// accountEmailData is the struct passed into the token_link templates.
type accountEmailData struct {
	AppName string
	Intro   string
	Link    string
}

// RenderAccountEmail renders one of the account emails (password reset,
// registration, add-email confirmation) around the given confirmation link.
func (r *Renderer) RenderAccountEmail(kind AccountEmailKind, appName, link string) (*RenderedEmail, error) {
	copyText, ok := accountEmailCopy[kind]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeInternalRender,
			fmt.Sprintf("unknown account email kind %q", kind), nil)
	}

	data := accountEmailData{
		AppName: appName,
		Intro:   copyText.intro,
		Link:    link,
	}

	var htmlBuf bytes.Buffer
	if err := r.accountHTML.Execute(&htmlBuf, data); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalRender, "failed to render account email HTML", err)
	}

	var txtBuf bytes.Buffer
	if err := r.accountText.Execute(&txtBuf, data); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalRender, "failed to render account email text", err)
	}

	return &RenderedEmail{
		Subject:  fmt.Sprintf("[%s] %s", appName, copyText.subject),
		BodyHTML: htmlBuf.String(),
		BodyText: txtBuf.String(),
	}, nil
}

// formatTime renders a millisecond timestamp as a short clock time.
func formatTime(ts int64) string {
	return time.UnixMilli(ts).UTC().Format("3:04 PM")
}

// formatDay renders a millisecond timestamp as a day heading.
func formatDay(ts int64) string {
	return time.UnixMilli(ts).UTC().Format("Monday, January 2")
}

// mxcToHTTP converts an mxc:// content URI into a fetchable thumbnail URL on
// the configured media base. Anything that is not an mxc URI passes through
// untouched.
func (r *Renderer) mxcToHTTP(uri string) string {
	rest, ok := strings.CutPrefix(uri, "mxc://")
	if !ok {
		return uri
	}
	server, mediaID, ok := strings.Cut(rest, "/")
	if !ok || server == "" || mediaID == "" {
		return ""
	}
	return fmt.Sprintf("%s/_matrix/media/v3/thumbnail/%s/%s?width=600&height=600&method=scale",
		r.mediaBaseURL, server, mediaID)
}

// avatarURL resolves a sender's avatar image: their own avatar when set,
// otherwise a default picked deterministically by hash.
func (r *Renderer) avatarURL(avatarURI string, hash int) string {
	if avatarURI != "" {
		thumb := r.mxcToHTTP(avatarURI)
		if thumb != "" {
			return thumb
		}
	}
	return defaultAvatars[hash%len(defaultAvatars)]
}

// senderColor picks the display-name color for a sender by hash.
func senderColor(hash int) string {
	return senderColors[hash%len(senderColors)]
}
