package config

import (
	"github.com/Veraticus/pdfmail/internal/model"
	"github.com/Veraticus/pdfmail/internal/pattern"
)

// Default values applied when the settings document omits a field.
const (
	DefaultSMTPServer          = "smtp.gmail.com"
	DefaultSMTPPort            = 587
	DefaultAutoSelectTimeout   = 10
	DefaultAutoSendTimeout     = 10
	DefaultEmailSendTimeout    = 180
	DefaultMaxAttachmentBytes  = 24 * 1024 * 1024
	DefaultCompanyTemplateName = "이메일양식A"
	DefaultSourceFolder        = "전송할PDF"
	DefaultCompletedFolder     = "전송완료"
	DefaultSettingsFile        = "settings.json"
)

// DefaultTemplates returns the stock templates written into a new settings
// document.
func DefaultTemplates() map[string]model.Template {
	return map[string]model.Template{
		DefaultCompanyTemplateName: {
			Name:    DefaultCompanyTemplateName,
			Subject: "안녕하세요, {회사명}님",
			Body: `안녕하세요.

{회사명}님께 보내드립니다.

첨부 파일: {파일명}
발송 일시: {날짜} {시간}

감사합니다.`,
		},
		"공식 보고서": {
			Name:    "공식 보고서",
			Subject: "[{회사명}] {날짜} 업무 보고",
			Body: `안녕하십니까.

{회사명} 담당자님께 업무 관련 자료를 송부드립니다.

▪ 파일명: {파일명}
▪ 발송일시: {날짜} {시간}

첨부 파일을 확인하신 후, 검토 부탁드리겠습니다.
문의사항이 있으시면 언제든 연락 주시기 바랍니다.

감사합니다.`,
		},
		"간결한 전달": {
			Name:    "간결한 전달",
			Subject: "{회사명} 자료 전달",
			Body: `{회사명} 담당자님, 안녕하세요.

요청하신 자료를 첨부하여 보내드립니다.

📎 {파일명}

확인 후 회신 부탁드립니다.

감사합니다.
{날짜} {시간}`,
		},
		"정중한 공문": {
			Name:    "정중한 공문",
			Subject: "[{회사명} 귀중] 문서 송부의 건",
			Body: `귀사의 무궁한 발전을 기원합니다.

{회사명} 담당자님께 아래와 같이 관련 문서를 송부하오니
검토하여 주시기 바랍니다.

1. 송부 문서: {파일명}
2. 발송 일시: {날짜} {시간}
3. 비고: 첨부파일 참조

감사합니다.`,
		},
	}
}

// Default returns a settings document with no companies and the stock
// templates.
func Default() *Settings {
	return &Settings{
		Email: EmailSettings{
			SMTPServer: DefaultSMTPServer,
			SMTPPort:   DefaultSMTPPort,
		},
		Pattern:            pattern.DefaultPattern,
		Companies:          map[string]model.Company{},
		Templates:          DefaultTemplates(),
		CustomVariables:    map[string]string{},
		AutoSelectTimeout:  DefaultAutoSelectTimeout,
		AutoSendTimeout:    DefaultAutoSendTimeout,
		EmailSendTimeout:   DefaultEmailSendTimeout,
		MaxAttachmentBytes: DefaultMaxAttachmentBytes,
	}
}

// StarterSettings is Default plus one example company, written by
// "pdfmail init".
func StarterSettings() *Settings {
	s := Default()
	s.Companies["예시회사"] = model.Company{
		Name:     "예시회사",
		Template: "공식 보고서",
		Emails:   []string{"contact@example.com"},
	}
	s.CustomVariables["담당자"] = "홍길동"
	return s
}
