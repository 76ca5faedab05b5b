package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/newsterm/newsterm/internal/api"
)

// freeTextValue marks the escape option on single-choice questions.
const freeTextValue = "__free_text__"

// SelectionMessage builds the wire message for an answered preference
// question. Multiple values travel comma-joined in a single reply.
func SelectionMessage(preferenceType string, values ...string) string {
	return api.PreferenceSelectionPrefix + preferenceType + ":" + strings.Join(values, ",")
}

// QuickReplyOptions converts a message's quick replies into huh options.
func QuickReplyOptions(msg api.ChatMessage) []huh.Option[string] {
	options := make([]huh.Option[string], 0, len(msg.QuickReplyOptions))
	for _, opt := range msg.QuickReplyOptions {
		options = append(options, huh.NewOption(opt.Label, opt.Value))
	}
	return options
}

// PickQuickReply shows the quick replies attached to an assistant message
// and returns the reply to send back. ok is false when the user dismissed
// the picker or asked to type a reply instead.
func PickQuickReply(msg api.ChatMessage) (reply string, ok bool, err error) {
	if len(msg.QuickReplyOptions) == 0 {
		return "", false, nil
	}

	if msg.SelectionType == api.SelectionMultiple {
		var picked []string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewMultiSelect[string]().
					Title("Pick one or more").
					Options(QuickReplyOptions(msg)...).
					Value(&picked),
			),
		)
		if err := form.Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return "", false, nil
			}
			return "", false, err
		}
		if len(picked) == 0 {
			return "", false, nil
		}
		return SelectionMessage(msg.PreferenceType, picked...), true, nil
	}

	options := QuickReplyOptions(msg)
	options = append(options, huh.NewOption("Type a reply instead", freeTextValue))

	var picked string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Pick a reply").
				Options(options...).
				Value(&picked),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", false, nil
		}
		return "", false, err
	}
	if picked == freeTextValue {
		return "", false, nil
	}
	if msg.PreferenceType == "" {
		// Plain quick reply, not a preference question. Send the value as-is.
		return picked, true, nil
	}
	return SelectionMessage(msg.PreferenceType, picked), true, nil
}
