package email

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/events"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
)

var resultTpl = template.Must(template.New("result").Parse(`
<h2>{{.Headline}}</h2>
<p>Payment session: <a href="{{.ListURL}}">{{.ListURL}}</a></p>
<p>Result: <b>{{.Code}}</b></p>
{{- if .Interaction}}
<p>Interaction: {{.Interaction.Code}} / {{.Interaction.Reason}}</p>
{{- end}}
{{- if .ResultInfo}}
<p>{{.ResultInfo}}</p>
{{- end}}
{{- if .Error}}
<p>Error: <code>{{.Error}}</code></p>
{{- end}}
`))

var headlines = map[model.ResultCode]string{
	model.ResultOK:       "Your payment went through",
	model.ResultCanceled: "Your payment was canceled",
	model.ResultError:    "Your payment could not be completed",
}

// RenderResultEmail returns the subject and html body of a result notification.
func RenderResultEmail(ev events.ResultEvent) (string, string, error) {
	headline, ok := headlines[ev.Code]
	if !ok {
		return "", "", fmt.Errorf("no email template for result code %q", ev.Code)
	}

	var buf bytes.Buffer
	err := resultTpl.Execute(&buf, struct {
		events.ResultEvent
		Headline string
	}{ev, headline})
	if err != nil {
		return "", "", fmt.Errorf("render result email: %w", err)
	}
	return headline, buf.String(), nil
}
