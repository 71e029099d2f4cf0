package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/spf13/afero"

	"github.com/Veraticus/pdfmail/internal/common"
	"github.com/Veraticus/pdfmail/internal/model"
	"github.com/Veraticus/pdfmail/internal/pattern"
)

// Port is an SMTP port that decodes from a JSON number or numeric string.
type Port int

// UnmarshalJSON implements json.Unmarshaler.
func (p *Port) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("smtp_port %q is not a number", s)
	}
	*p = Port(n)
	return nil
}

// EmailSettings holds the sending account.
type EmailSettings struct {
	SMTPServer     string `json:"smtp_server"`
	SenderEmail    string `json:"sender_email"`
	SenderPassword string `json:"sender_password"`
	SMTPPort       Port   `json:"smtp_port"`
}

// Settings is the decoded settings document.
type Settings struct {
	Companies       map[string]model.Company
	Templates       map[string]model.Template
	CustomVariables map[string]string
	matcher         *pattern.Matcher
	// Path is the file the settings were loaded from.
	Path               string
	Pattern            string
	PDFFolder          string
	CompletedFolder    string
	Email              EmailSettings
	AutoSelectTimeout  int
	AutoSendTimeout    int
	EmailSendTimeout   int
	MaxAttachmentBytes int64
	SendRatePerMinute  float64
	DebugMode          bool
	CreateFolders      bool
}

type document struct {
	Companies          map[string]json.RawMessage `json:"companies"`
	Templates          map[string]json.RawMessage `json:"email_templates"`
	CustomVariables    map[string]any             `json:"custom_variables"`
	AutoSelectTimeout  *int                       `json:"auto_select_timeout"`
	AutoSendTimeout    *int                       `json:"auto_send_timeout"`
	EmailSendTimeout   *int                       `json:"email_send_timeout"`
	Pattern            string                     `json:"pattern"`
	PDFFolder          string                     `json:"pdf_folder"`
	CompletedFolder    string                     `json:"completed_folder"`
	Email              EmailSettings              `json:"email"`
	MaxAttachmentBytes int64                      `json:"max_attachment_bytes"`
	SendRatePerMinute  float64                    `json:"send_rate_per_minute"`
	DebugMode          bool                       `json:"debug_mode"`
	CreateFolders      bool                       `json:"create_folders"`
}

// LoadOptions configures Load.
type LoadOptions struct {
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// PasswordLookup is consulted when sender_password is empty.
	PasswordLookup func(account string) (string, error)
	Logger         *slog.Logger
}

// Load reads and decodes the settings document at path. It does not
// validate; call Validate before use.
func Load(path string, opts LoadOptions) (*Settings, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	logger := common.OrDefault(opts.Logger)

	data, err := afero.ReadFile(opts.Fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: settings file %s not found", common.ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, err
	}
	s.Path = path

	if s.Email.SenderPassword == "" && s.Email.SenderEmail != "" && opts.PasswordLookup != nil {
		secret, lookupErr := opts.PasswordLookup(s.Email.SenderEmail)
		if lookupErr != nil {
			logger.Debug("No stored password", "account", s.Email.SenderEmail, "error", lookupErr)
		} else {
			s.Email.SenderPassword = stripBlanks(secret)
		}
	}

	logger.Info("Settings loaded",
		"path", path,
		"sender", s.Email.SenderEmail,
		"companies", len(s.Companies),
		"templates", len(s.Templates))

	return s, nil
}

// Parse decodes a settings document and applies defaults.
func Parse(data []byte) (*Settings, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, common.NewConfigError("", fmt.Errorf("malformed settings document: %w", err))
	}

	s := &Settings{
		Email:              doc.Email,
		Pattern:            doc.Pattern,
		Companies:          make(map[string]model.Company),
		Templates:          make(map[string]model.Template),
		CustomVariables:    make(map[string]string, len(doc.CustomVariables)),
		AutoSelectTimeout:  intOr(doc.AutoSelectTimeout, DefaultAutoSelectTimeout),
		AutoSendTimeout:    intOr(doc.AutoSendTimeout, DefaultAutoSendTimeout),
		EmailSendTimeout:   intOr(doc.EmailSendTimeout, DefaultEmailSendTimeout),
		PDFFolder:          doc.PDFFolder,
		CompletedFolder:    doc.CompletedFolder,
		MaxAttachmentBytes: doc.MaxAttachmentBytes,
		SendRatePerMinute:  doc.SendRatePerMinute,
		DebugMode:          doc.DebugMode,
		CreateFolders:      doc.CreateFolders,
	}
	s.Email.SenderPassword = stripBlanks(s.Email.SenderPassword)

	if s.Pattern == "" {
		s.Pattern = pattern.DefaultPattern
	}
	if s.MaxAttachmentBytes <= 0 {
		s.MaxAttachmentBytes = DefaultMaxAttachmentBytes
	}
	if s.EmailSendTimeout <= 0 {
		s.EmailSendTimeout = DefaultEmailSendTimeout
	}

	for name, raw := range doc.Companies {
		if strings.HasPrefix(name, "_") || !isObject(raw) {
			continue
		}
		var c model.Company
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, common.NewConfigError("companies."+name, err)
		}
		c.Name = name
		if c.Template == "" {
			c.Template = DefaultCompanyTemplateName
		}
		s.Companies[name] = c
	}

	for name, raw := range doc.Templates {
		if strings.HasPrefix(name, "_") || !isObject(raw) {
			continue
		}
		var t model.Template
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, common.NewConfigError("email_templates."+name, err)
		}
		t.Name = name
		s.Templates[name] = t
	}

	for k, v := range doc.CustomVariables {
		if strings.HasPrefix(k, "_") {
			continue
		}
		switch val := v.(type) {
		case string:
			s.CustomVariables[k] = val
		case nil:
			s.CustomVariables[k] = ""
		default:
			s.CustomVariables[k] = fmt.Sprint(val)
		}
	}

	return s, nil
}

// Validate checks the pattern and the company directory. All problems are
// reported together; each is a *common.ConfigError.
func (s *Settings) Validate() error {
	var errs []error

	m, err := pattern.Compile(s.Pattern)
	if err != nil {
		errs = append(errs, common.NewConfigError("pattern", err))
	} else {
		s.matcher = m
	}

	for _, name := range model.SortedKeys(s.Companies) {
		c := s.Companies[name]
		if len(c.Emails) == 0 {
			errs = append(errs, common.NewConfigError("companies."+name+".emails", errors.New("no recipients")))
		}
		for _, addr := range c.Emails {
			if _, err := mail.ParseAddress(addr); err != nil {
				errs = append(errs, common.NewConfigError("companies."+name+".emails", fmt.Errorf("invalid address %q: %w", addr, err)))
			}
		}
		if _, ok := s.Templates[c.Template]; !ok {
			errs = append(errs, common.NewConfigError("companies."+name+".template", fmt.Errorf("template %q does not exist", c.Template)))
		}
	}

	return errors.Join(errs...)
}

// ValidateEmail checks the sending account. It is only required for
// operations that talk to the SMTP server.
func (s *Settings) ValidateEmail() error {
	var errs []error
	if strings.TrimSpace(s.Email.SMTPServer) == "" {
		errs = append(errs, common.NewConfigError("email.smtp_server", errors.New("not set")))
	}
	if s.Email.SMTPPort <= 0 || s.Email.SMTPPort > 65535 {
		errs = append(errs, common.NewConfigError("email.smtp_port", fmt.Errorf("invalid port %d", s.Email.SMTPPort)))
	}
	if _, err := mail.ParseAddress(s.Email.SenderEmail); err != nil {
		errs = append(errs, common.NewConfigError("email.sender_email", err))
	}
	if s.Email.SenderPassword == "" {
		errs = append(errs, common.NewConfigError("email.sender_password", errors.New("not set and not found in keyring")))
	}
	return errors.Join(errs...)
}

// Matcher returns the compiled file name pattern. Validate must have
// succeeded first.
func (s *Settings) Matcher() *pattern.Matcher {
	if s.matcher == nil {
		if m, err := pattern.Compile(s.Pattern); err == nil {
			s.matcher = m
		}
	}
	return s.matcher
}

// SendBudget is the wall-clock budget for a whole send batch.
func (s *Settings) SendBudget() time.Duration {
	return time.Duration(s.EmailSendTimeout) * time.Second
}

// Dir is the directory containing the settings file.
func (s *Settings) Dir() string {
	if s.Path == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
		return "."
	}
	dir, err := filepath.Abs(filepath.Dir(s.Path))
	if err != nil {
		return filepath.Dir(s.Path)
	}
	return dir
}

// SourceDir is the folder scanned for PDFs.
func (s *Settings) SourceDir() string {
	return ResolvePath(s.Dir(), s.PDFFolder, DefaultSourceFolder)
}

// CompletedDir is the folder sent PDFs are moved to.
func (s *Settings) CompletedDir() string {
	return ResolvePath(s.Dir(), s.CompletedFolder, DefaultCompletedFolder)
}

// EnsureFolders creates the source and completed folders. Default folders
// are always created; configured folders only when create_folders is set.
func (s *Settings) EnsureFolders(fs afero.Fs, source, completed string) error {
	for _, f := range []struct {
		dir        string
		configured bool
	}{
		{dir: source, configured: s.PDFFolder != ""},
		{dir: completed, configured: s.CompletedFolder != ""},
	} {
		exists, err := afero.DirExists(fs, f.dir)
		if err != nil {
			return fmt.Errorf("failed to check folder %s: %w", f.dir, err)
		}
		if exists {
			continue
		}
		if f.configured && !s.CreateFolders {
			return common.NewConfigError("folders", fmt.Errorf("folder %s does not exist", f.dir))
		}
		if err := fs.MkdirAll(f.dir, 0o755); err != nil {
			return fmt.Errorf("failed to create folder %s: %w", f.dir, err)
		}
	}
	return nil
}

// Save writes the settings document to path as indented JSON.
func (s *Settings) Save(fs afero.Fs, path string) error {
	out := struct {
		Companies          map[string]model.Company  `json:"companies"`
		Templates          map[string]model.Template `json:"email_templates"`
		CustomVariables    map[string]string         `json:"custom_variables"`
		Email              EmailSettings             `json:"email"`
		Pattern            string                    `json:"pattern"`
		PDFFolder          string                    `json:"pdf_folder"`
		CompletedFolder    string                    `json:"completed_folder"`
		AutoSelectTimeout  int                       `json:"auto_select_timeout"`
		AutoSendTimeout    int                       `json:"auto_send_timeout"`
		EmailSendTimeout   int                       `json:"email_send_timeout"`
		MaxAttachmentBytes int64                     `json:"max_attachment_bytes"`
		SendRatePerMinute  float64                   `json:"send_rate_per_minute"`
		DebugMode          bool                      `json:"debug_mode"`
		CreateFolders      bool                      `json:"create_folders"`
	}{
		Companies:          s.Companies,
		Templates:          s.Templates,
		CustomVariables:    s.CustomVariables,
		Email:              s.Email,
		Pattern:            s.Pattern,
		PDFFolder:          s.PDFFolder,
		CompletedFolder:    s.CompletedFolder,
		AutoSelectTimeout:  s.AutoSelectTimeout,
		AutoSendTimeout:    s.AutoSendTimeout,
		EmailSendTimeout:   s.EmailSendTimeout,
		MaxAttachmentBytes: s.MaxAttachmentBytes,
		SendRatePerMinute:  s.SendRatePerMinute,
		DebugMode:          s.DebugMode,
		CreateFolders:      s.CreateFolders,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func stripBlanks(s string) string {
	return strings.NewReplacer(" ", "", "\t", "").Replace(s)
}
