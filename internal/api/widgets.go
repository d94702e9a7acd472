package api

import (
	"context"
	"net/http"
	"time"

	"github.com/widgetstore/wsq/internal/models"
)

// PublicWidgets lists public widgets with optional filters.
// Failures degrade to an empty list.
func (c *Client) PublicWidgets(ctx context.Context, params models.ListParams) []models.Widget {
	url := c.cfg.APIURL() + "/widgets"
	if q := params.Values().Encode(); q != "" {
		url += "?" + q
	}

	data, err := c.do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		c.logger.Debug("list public widgets failed", "err", err)
		return nil
	}

	var widgets []models.Widget
	if err := decode(data, &widgets); err != nil {
		c.logger.Debug("list public widgets failed", "err", err)
		return nil
	}
	return widgets
}

// UserWidgets lists the signed-in user's widgets. Returns an empty list
// immediately, without a network call, when unauthenticated.
func (c *Client) UserWidgets(ctx context.Context, params models.ListParams) []models.UserWidget {
	if !c.auth.IsAuthenticated() {
		return nil
	}

	params.Search = "" // user listing does not support search
	url := c.cfg.APIURL() + "/widgets/user"
	if q := params.Values().Encode(); q != "" {
		url += "?" + q
	}

	data, err := c.do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		c.logger.Debug("list user widgets failed", "err", err)
		return nil
	}

	var widgets []models.UserWidget
	if err := decode(data, &widgets); err != nil {
		c.logger.Debug("list user widgets failed", "err", err)
		return nil
	}
	return widgets
}

// Widget fetches a single widget by id, or nil when unavailable.
func (c *Client) Widget(ctx context.Context, widgetID string) *models.Widget {
	data, err := c.do(ctx, http.MethodGet, c.cfg.APIURL()+"/widgets/"+widgetID, nil, nil)
	if err != nil {
		c.logger.Debug("get widget failed", "id", widgetID, "err", err)
		return nil
	}

	var widget models.Widget
	if err := decode(data, &widget); err != nil {
		c.logger.Debug("get widget failed", "id", widgetID, "err", err)
		return nil
	}
	return &widget
}

// CreateUserWidget copies a public widget into the user's space via the
// serverless platform's document endpoint. Returns nil when unauthenticated
// or on failure.
func (c *Client) CreateUserWidget(ctx context.Context, widgetID string) *models.UserWidget {
	if !c.auth.IsAuthenticated() {
		return nil
	}

	now := time.Now().UnixMilli()
	body := map[string]any{
		"action":         "database.addDocument",
		"dataVersion":    "2020-01-10",
		"env":            c.cfg.Env(),
		"collectionName": "user-widget",
		"data": map[string]any{
			"widgetId":   widgetID,
			"data":       map[string]any{},
			"values":     map[string]any{},
			"createTime": now,
			"updateTime": now,
		},
	}
	extra := map[string]string{
		"content-type":  "application/json;charset=UTF-8",
		"X-SDK-Version": "@cloudbase/js-sdk/1.7.2",
	}

	data, err := c.do(ctx, http.MethodPost, c.cfg.TCBWebURL(), body, extra)
	if err != nil {
		c.logger.Debug("create user widget failed", "id", widgetID, "err", err)
		return nil
	}

	var widget models.UserWidget
	if err := decode(data, &widget); err != nil {
		c.logger.Debug("create user widget failed", "id", widgetID, "err", err)
		return nil
	}
	return &widget
}

// DeleteUserWidget removes a user-widget by id. Returns false when
// unauthenticated or on failure. Not guaranteed idempotent; retrying is the
// caller's responsibility.
func (c *Client) DeleteUserWidget(ctx context.Context, userWidgetID string) bool {
	if !c.auth.IsAuthenticated() {
		return false
	}

	data, err := c.do(ctx, http.MethodDelete, c.cfg.APIURL()+"/front/user/deleteWidget/"+userWidgetID, nil, nil)
	if err != nil {
		c.logger.Debug("delete user widget failed", "id", userWidgetID, "err", err)
		return false
	}

	if err := decode(data, nil); err != nil {
		c.logger.Debug("delete user widget failed", "id", userWidgetID, "err", err)
		return false
	}
	return true
}

// AddUserWidget adds a public widget to the user's space by id. Returns
// false when unauthenticated or on failure. Not guaranteed idempotent.
func (c *Client) AddUserWidget(ctx context.Context, widgetID string) bool {
	if !c.auth.IsAuthenticated() {
		return false
	}

	body := map[string]string{
		"widgetId": widgetID,
		"uid":      c.auth.UID(),
	}

	data, err := c.do(ctx, http.MethodPost, c.cfg.APIURL()+"/widgets/user/add", body, nil)
	if err != nil {
		c.logger.Debug("add user widget failed", "id", widgetID, "err", err)
		return false
	}

	if err := decode(data, nil); err != nil {
		c.logger.Debug("add user widget failed", "id", widgetID, "err", err)
		return false
	}
	return true
}

// Categories lists the widget categories. Failures degrade to an empty list.
func (c *Client) Categories(ctx context.Context) []models.Category {
	data, err := c.do(ctx, http.MethodGet, c.cfg.APIURL()+"/front/category/list", nil, nil)
	if err != nil {
		c.logger.Debug("list categories failed", "err", err)
		return nil
	}

	var categories []models.Category
	if err := decode(data, &categories); err != nil {
		c.logger.Debug("list categories failed", "err", err)
		return nil
	}
	return categories
}

// WidgetHTML fetches the rendered HTML for a widget id, or "" on failure.
func (c *Client) WidgetHTML(ctx context.Context, widgetID string) string {
	data, err := c.do(ctx, http.MethodGet, c.cfg.APIURL()+"/view/widget/"+widgetID, nil, nil)
	if err != nil {
		c.logger.Debug("fetch widget html failed", "id", widgetID, "err", err)
		return ""
	}

	var view struct {
		HTML string `json:"html"`
	}
	if err := decode(data, &view); err != nil {
		c.logger.Debug("fetch widget html failed", "id", widgetID, "err", err)
		return ""
	}
	return view.HTML
}
