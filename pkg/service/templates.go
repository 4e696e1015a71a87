package service

import (
	"bytes"
	"fmt"
	"html/template"
)

var emailTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Hello {{.Username}},</p>
<p>{{.Message}}</p>
{{if .Link}}<p><a href="{{.Link}}">{{.Link}}</a></p>{{end}}
</body>
</html>
`))

type emailData struct {
	Username string
	Message  string
	Link     string
}

func renderEmail(data emailData) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}
