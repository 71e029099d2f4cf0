// Package render fills {token} placeholders in mail templates.
package render

import (
	"strings"
	"time"

	"github.com/Veraticus/pdfmail/internal/model"
)

// Built-in placeholder tokens.
const (
	TokenCompany     = "{회사명}"
	TokenFileName    = "{파일명}"
	TokenDate        = "{날짜}"
	TokenTime        = "{시간}"
	TokenYear        = "{년}"
	TokenMonth       = "{월}"
	TokenDay         = "{일}"
	TokenWeekday     = "{요일}"
	TokenWeekdayKo   = "{요일한글}"
	TokenHour        = "{시}"
	TokenMinute      = "{분}"
	TokenSecond      = "{초}"
	TokenTime12      = "{시간12}"
	TokenMeridiem    = "{오전오후}"
	attachmentHeader = "\n\n[첨부 파일]\n"
)

// koreanWeekdays is indexed by ISO weekday minus one (Monday first).
var koreanWeekdays = [7]string{"월", "화", "수", "목", "금", "토", "일"}

// Context carries the run-time values for one message.
type Context struct {
	Now      time.Time
	Company  string
	FileName string
	// Files lists every attachment name. With more than one entry the body
	// gets an itemized list appended.
	Files []string
}

// Result is a rendered subject and body.
type Result struct {
	Subject string
	Body    string
}

// Builtins returns the built-in token values for ctx.
func Builtins(ctx Context) map[string]string {
	now := ctx.Now
	meridiem := "오전"
	if now.Hour() >= 12 {
		meridiem = "오후"
	}

	return map[string]string{
		TokenCompany:   ctx.Company,
		TokenFileName:  ctx.FileName,
		TokenDate:      now.Format("2006-01-02"),
		TokenTime:      now.Format("15:04:05"),
		TokenYear:      now.Format("2006"),
		TokenMonth:     now.Format("01"),
		TokenDay:       now.Format("02"),
		TokenWeekday:   now.Weekday().String(),
		TokenWeekdayKo: koreanWeekdays[(int(now.Weekday())+6)%7],
		TokenHour:      now.Format("15"),
		TokenMinute:    now.Format("04"),
		TokenSecond:    now.Format("05"),
		TokenTime12:    now.Format("03:04 PM"),
		TokenMeridiem:  meridiem,
	}
}

// Render substitutes placeholders in tmpl. Custom variables are keyed by
// bare name ("담당자" fills "{담당자}") and take precedence over built-ins
// of the same name. A braced key ("{담당자}") is accepted too, but the bare
// key wins when both are present. Substitution is a single pass, so substituted values
// are never expanded again. Unknown tokens are left as written.
func Render(tmpl model.Template, ctx Context, custom map[string]string) Result {
	values := Builtins(ctx)
	for _, name := range model.SortedKeys(custom) {
		if tokenFor(name) != name {
			continue
		}
		values[name] = custom[name]
	}
	for _, name := range model.SortedKeys(custom) {
		if token := tokenFor(name); token != name {
			values[token] = custom[name]
		}
	}

	pairs := make([]string, 0, len(values)*2)
	for _, token := range model.SortedKeys(values) {
		pairs = append(pairs, token, values[token])
	}
	r := strings.NewReplacer(pairs...)

	body := r.Replace(tmpl.Body)
	if len(ctx.Files) > 1 {
		var b strings.Builder
		b.WriteString(body)
		b.WriteString(attachmentHeader)
		for i, name := range ctx.Files {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("- ")
			b.WriteString(name)
		}
		body = b.String()
	}

	return Result{
		Subject: r.Replace(tmpl.Subject),
		Body:    body,
	}
}

func tokenFor(name string) string {
	if strings.HasPrefix(name, "{") && strings.HasSuffix(name, "}") {
		return name
	}
	return "{" + name + "}"
}
