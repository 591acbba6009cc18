package reply

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/gewegate/internal/event"
)

// Length caps for user-supplied text embedded in appmsg payloads.
const (
	quoteTitleCap   = 1800
	quoteContentCap = 600
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// BuildQuote builds the appmsg XML for a quoted reply referencing the
// original message. The event must carry a provider message id; its absence
// is a hard error for this send. When withAt is set the sender is embedded
// as an at-target and the visible text gets an @ prefix.
func BuildQuote(ev *event.NormalizedEvent, text string, withAt bool) (string, error) {
	if ev.NewMsgID == 0 {
		return "", fmt.Errorf("quote reply requires a provider message id")
	}

	title := text
	if withAt {
		title = "@" + ev.DisplayName() + " " + text
	}
	title, _ = event.Shorten(title, quoteTitleCap)
	quoted, _ := event.Shorten(strings.TrimSpace(ev.Content), quoteContentCap)

	var b strings.Builder
	b.WriteString(`<appmsg appid="" sdkver="0">`)
	b.WriteString("<title>")
	b.WriteString(xmlEscaper.Replace(title))
	b.WriteString("</title><des></des><type>57</type>")
	b.WriteString("<refermsg>")
	fmt.Fprintf(&b, "<type>%d</type>", ev.MsgType)
	fmt.Fprintf(&b, "<svrid>%d</svrid>", ev.NewMsgID)
	fmt.Fprintf(&b, "<fromusr>%s</fromusr>", xmlEscaper.Replace(ev.FromWxid))
	fmt.Fprintf(&b, "<chatusr>%s</chatusr>", xmlEscaper.Replace(ev.SenderWxid()))
	fmt.Fprintf(&b, "<displayname>%s</displayname>", xmlEscaper.Replace(ev.DisplayName()))
	fmt.Fprintf(&b, "<content>%s</content>", xmlEscaper.Replace(quoted))
	b.WriteString("</refermsg>")
	if withAt {
		fmt.Fprintf(&b, "<atuserlist>%s</atuserlist>", xmlEscaper.Replace(ev.SenderWxid()))
	}
	b.WriteString("</appmsg>")

	return b.String(), nil
}
