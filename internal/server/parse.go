package server

import (
	"encoding/json"
	"fmt"

	"github.com/lotas/tabkartei/internal/types"
)

type wireTab struct {
	ID    int    `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

type wireContent struct {
	Title           string `json:"title"`
	MetaDescription string `json:"metaDescription"`
	BodyText        string `json:"bodyText"`
}

// ParseTab decodes the tab carried by a lifecycle event.
func ParseTab(raw json.RawMessage) (types.Tab, error) {
	if len(raw) == 0 {
		return types.Tab{}, fmt.Errorf("event has no tab payload")
	}
	var wt wireTab
	if err := json.Unmarshal(raw, &wt); err != nil {
		return types.Tab{}, fmt.Errorf("parse tab: %w", err)
	}
	return types.Tab{ID: wt.ID, URL: wt.URL, Title: wt.Title}, nil
}

// ParseTabList decodes the tabs carried by a tabList reply.
func ParseTabList(msg IncomingMsg) ([]types.Tab, error) {
	if len(msg.Tabs) == 0 {
		return nil, fmt.Errorf("tabList reply has no tabs payload")
	}
	var wts []wireTab
	if err := json.Unmarshal(msg.Tabs, &wts); err != nil {
		return nil, fmt.Errorf("parse tabs: %w", err)
	}
	tabs := make([]types.Tab, 0, len(wts))
	for _, wt := range wts {
		tabs = append(tabs, types.Tab{ID: wt.ID, URL: wt.URL, Title: wt.Title})
	}
	return tabs, nil
}

// ParseContent decodes the content carried by a contentResult reply.
// BodyText is truncated to the stored bound.
func ParseContent(msg IncomingMsg) (types.PageContent, error) {
	if len(msg.Content) == 0 {
		return types.PageContent{}, fmt.Errorf("contentResult has no content payload")
	}
	var wc wireContent
	if err := json.Unmarshal(msg.Content, &wc); err != nil {
		return types.PageContent{}, fmt.Errorf("parse content: %w", err)
	}
	body := wc.BodyText
	if len(body) > types.MaxBodyText {
		body = body[:types.MaxBodyText]
	}
	return types.PageContent{
		Title:           wc.Title,
		MetaDescription: wc.MetaDescription,
		BodyText:        body,
	}, nil
}
