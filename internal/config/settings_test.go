package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/pdfmail/internal/common"
	"github.com/Veraticus/pdfmail/internal/model"
	"github.com/Veraticus/pdfmail/internal/pattern"
)

const sampleSettings = `{
	"email": {
		"smtp_server": "smtp.example.com",
		"smtp_port": "465",
		"sender_email": "ops@example.com",
		"sender_password": "abcd efgh\tijkl"
	},
	"companies": {
		"_description": "metadata entry",
		"Acme": {"emails": ["a@acme.test"], "template": "T1"},
		"acme": {"emails": ["b@acme.test"], "template": "T1"},
		"Broken": "not an object"
	},
	"email_templates": {
		"_description": {"subject": "x", "body": "y"},
		"T1": {"subject": "[{회사명}] report", "body": "hello"}
	},
	"custom_variables": {"담당자": "홍길동", "count": 3},
	"auto_select_timeout": -1,
	"debug_mode": true
}`

func writeSettings(t *testing.T, fs afero.Fs, content string) string {
	t.Helper()
	path := "/cfg/settings.json"
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := writeSettings(t, fs, sampleSettings)

	s, err := Load(path, LoadOptions{Fs: fs})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com", s.Email.SMTPServer)
	assert.Equal(t, Port(465), s.Email.SMTPPort)
	assert.Equal(t, "abcdefghijkl", s.Email.SenderPassword)
	assert.Equal(t, pattern.DefaultPattern, s.Pattern)

	require.Len(t, s.Companies, 2, "metadata and non-object entries are skipped")
	assert.Equal(t, "Acme", s.Companies["Acme"].Name)
	assert.Equal(t, []string{"b@acme.test"}, s.Companies["acme"].Emails, "company names are case-sensitive")

	require.Len(t, s.Templates, 1)
	assert.Equal(t, "[{회사명}] report", s.Templates["T1"].Subject)

	assert.Equal(t, map[string]string{"담당자": "홍길동", "count": "3"}, s.CustomVariables)
	assert.Equal(t, -1, s.AutoSelectTimeout)
	assert.Equal(t, DefaultAutoSendTimeout, s.AutoSendTimeout)
	assert.Equal(t, DefaultEmailSendTimeout, s.EmailSendTimeout)
	assert.Equal(t, int64(DefaultMaxAttachmentBytes), s.MaxAttachmentBytes)
	assert.True(t, s.DebugMode)

	require.NoError(t, s.Validate())
	require.NoError(t, s.ValidateEmail())
	assert.NotNil(t, s.Matcher())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nope/settings.json", LoadOptions{Fs: afero.NewMemMapFs()})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestLoad_Malformed(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := writeSettings(t, fs, `{"email": `)

	_, err := Load(path, LoadOptions{Fs: fs})
	require.Error(t, err)
	var configErr *common.ConfigError
	assert.ErrorAs(t, err, &configErr)
}

func TestLoad_PasswordLookup(t *testing.T) {
	tests := []struct {
		lookupErr error
		name      string
		stored    string
		want      string
	}{
		{name: "found", stored: "from keyring", want: "fromkeyring"},
		{name: "not found", lookupErr: errors.New("not found"), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			path := writeSettings(t, fs, `{"email": {"smtp_server": "s", "smtp_port": 587, "sender_email": "ops@example.com"}}`)

			var asked string
			s, err := Load(path, LoadOptions{
				Fs: fs,
				PasswordLookup: func(account string) (string, error) {
					asked = account
					return tt.stored, tt.lookupErr
				},
			})
			require.NoError(t, err)
			assert.Equal(t, "ops@example.com", asked)
			assert.Equal(t, tt.want, s.Email.SenderPassword)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		field    string
		name     string
		settings string
	}{
		{
			name:     "bad pattern",
			settings: `{"pattern": "^([A-Z"}`,
			field:    "pattern",
		},
		{
			name:     "pattern without group",
			settings: `{"pattern": "^[A-Z]+___"}`,
			field:    "pattern",
		},
		{
			name:     "no recipients",
			settings: `{"companies": {"Acme": {"emails": [], "template": "T1"}}, "email_templates": {"T1": {"subject": "s", "body": "b"}}}`,
			field:    "companies.Acme.emails",
		},
		{
			name:     "invalid recipient",
			settings: `{"companies": {"Acme": {"emails": ["not an address"], "template": "T1"}}, "email_templates": {"T1": {"subject": "s", "body": "b"}}}`,
			field:    "companies.Acme.emails",
		},
		{
			name:     "missing template",
			settings: `{"companies": {"Acme": {"emails": ["a@acme.test"], "template": "T9"}}}`,
			field:    "companies.Acme.template",
		},
		{
			name:     "default template name must exist",
			settings: `{"companies": {"Acme": {"emails": ["a@acme.test"]}}}`,
			field:    "companies.Acme.template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.settings))
			require.NoError(t, err)

			err = s.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)

			var configErr *common.ConfigError
			require.ErrorAs(t, err, &configErr)
			assert.Equal(t, tt.field, configErr.Field)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	s, err := Parse([]byte(`{"email": {"smtp_server": "", "smtp_port": 0, "sender_email": "", "sender_password": "  "}}`))
	require.NoError(t, err)

	err = s.ValidateEmail()
	require.Error(t, err)
	for _, field := range []string{"email.smtp_server", "email.smtp_port", "email.sender_email", "email.sender_password"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestPort_RejectsNonNumeric(t *testing.T) {
	_, err := Parse([]byte(`{"email": {"smtp_port": "smtp"}}`))
	assert.Error(t, err)
}

func TestFolders(t *testing.T) {
	s := Default()
	s.Path = "/work/settings.json"

	assert.Equal(t, filepath.Join("/work", DefaultSourceFolder), s.SourceDir())
	assert.Equal(t, filepath.Join("/work", DefaultCompletedFolder), s.CompletedDir())

	s.PDFFolder = "inbox"
	s.CompletedFolder = "/abs/done"
	assert.Equal(t, filepath.Join("/work", "inbox"), s.SourceDir())
	assert.Equal(t, "/abs/done", s.CompletedDir())
}

func TestEnsureFolders(t *testing.T) {
	t.Run("default folders are created", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		s := Default()
		s.Path = "/work/settings.json"

		require.NoError(t, s.EnsureFolders(fs, s.SourceDir(), s.CompletedDir()))
		ok, err := afero.DirExists(fs, s.SourceDir())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("configured folders require create_folders", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		s := Default()
		s.Path = "/work/settings.json"
		s.PDFFolder = "/elsewhere/in"

		err := s.EnsureFolders(fs, s.SourceDir(), s.CompletedDir())
		assert.ErrorIs(t, err, common.ErrInvalidConfig)

		s.CreateFolders = true
		require.NoError(t, s.EnsureFolders(fs, s.SourceDir(), s.CompletedDir()))
	})
}

func TestSave_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := Default()
	s.Email.SenderEmail = "ops@example.com"

	require.NoError(t, s.Save(fs, "/cfg/settings.json"))

	loaded, err := Load("/cfg/settings.json", LoadOptions{Fs: fs})
	require.NoError(t, err)
	assert.Equal(t, s.Email.SMTPServer, loaded.Email.SMTPServer)
	assert.Equal(t, s.Email.SMTPPort, loaded.Email.SMTPPort)
	assert.Len(t, loaded.Templates, len(DefaultTemplates()))
	assert.Equal(t, "공식 보고서", loaded.Templates["공식 보고서"].Name)
}

func TestStarterSettings_Valid(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, StarterSettings().Save(fs, "/cfg/settings.json"))

	loaded, err := Load("/cfg/settings.json", LoadOptions{Fs: fs})
	require.NoError(t, err)
	require.NoError(t, loaded.Validate())
	assert.Contains(t, loaded.Companies, "예시회사")
	assert.Equal(t, "홍길동", loaded.CustomVariables["담당자"])
}

func TestDefault_CompanyWithoutTemplateValidates(t *testing.T) {
	require.Contains(t, DefaultTemplates(), DefaultCompanyTemplateName)

	fs := afero.NewMemMapFs()
	s := Default()
	s.Companies["Acme"] = model.Company{Name: "Acme", Emails: []string{"a@acme.test"}}
	require.NoError(t, s.Save(fs, "/cfg/settings.json"))

	loaded, err := Load("/cfg/settings.json", LoadOptions{Fs: fs})
	require.NoError(t, err)
	assert.Equal(t, DefaultCompanyTemplateName, loaded.Companies["Acme"].Template)
	assert.NoError(t, loaded.Validate())
}

func TestResolvePath(t *testing.T) {
	t.Setenv("PDFMAIL_TEST_DIR", "/from/env")

	assert.Equal(t, "/base/fallback", ResolvePath("/base", "", "fallback"))
	assert.Equal(t, "/base/rel", ResolvePath("/base", "rel", "fallback"))
	assert.Equal(t, "/from/env/x", ResolvePath("/base", "$PDFMAIL_TEST_DIR/x", "fallback"))
}
