package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nextlevelbuilder/gewegate/internal/event"
	"github.com/nextlevelbuilder/gewegate/internal/rules"
)

// defaultFilenameTemplate names saved media when the rule doesn't set one.
const defaultFilenameTemplate = "{app_id}_{new_msg_id}"

// save downloads the event's media through the provider API and writes it
// under the rule's directory.
func (d *Dispatcher) save(ctx context.Context, ev *event.NormalizedEvent, spec *rules.SaveSpec) error {
	data, ext, err := d.download(ctx, ev)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(spec.Dir, 0o755); err != nil {
		return fmt.Errorf("create save dir %s: %w", spec.Dir, err)
	}

	name := expandFilename(spec.Filename, ev)
	if filepath.Ext(name) == "" {
		name += ext
	}
	path := filepath.Join(spec.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// download dispatches on the event kind to the matching provider media call
// and picks a filename extension for the payload.
func (d *Dispatcher) download(ctx context.Context, ev *event.NormalizedEvent) ([]byte, string, error) {
	switch ev.Kind {
	case event.KindImage:
		data, err := d.client.DownloadImage(ctx, ev.AppID, ev.Content)
		return data, ".jpg", err
	case event.KindVoice:
		data, err := d.client.DownloadVoice(ctx, ev.AppID, ev.Content, ev.NewMsgID)
		return data, ".silk", err
	case event.KindVideo:
		data, err := d.client.DownloadVideo(ctx, ev.AppID, ev.Content)
		return data, ".mp4", err
	case event.KindEmoji:
		data, err := d.client.DownloadEmoji(ctx, ev.AppID, ev.Content)
		return data, ".gif", err
	case event.KindFile:
		data, err := d.client.DownloadFile(ctx, ev.AppID, ev.Content)
		return data, ".bin", err
	default:
		return nil, "", fmt.Errorf("kind %s has no downloadable media", ev.Kind)
	}
}

// expandFilename substitutes the supported placeholders.
func expandFilename(template string, ev *event.NormalizedEvent) string {
	if template == "" {
		template = defaultFilenameTemplate
	}
	r := strings.NewReplacer(
		"{new_msg_id}", itoa64(ev.NewMsgID),
		"{from_wxid}", ev.FromWxid,
		"{app_id}", ev.AppID,
	)
	return r.Replace(template)
}
