package backend

import (
	"context"
	"net/http"
	"net/url"

	"medword/internal/model"
	"medword/internal/pkg/apperr"
)

func (c *Client) ListPrompts(ctx context.Context) (model.PromptList, error) {
	var list model.PromptList
	if err := c.doJSON(ctx, "list prompts", http.MethodGet, "/prompts", nil, &list, c.listTimeout); err != nil {
		return model.PromptList{}, err
	}
	return list, nil
}

func (c *Client) CreatePrompt(ctx context.Context, in model.PromptInput) (model.Prompt, error) {
	return c.writePrompt(ctx, "create prompt", http.MethodPost, "/prompts", in)
}

func (c *Client) UpdatePrompt(ctx context.Context, id string, in model.PromptInput) (model.Prompt, error) {
	return c.writePrompt(ctx, "update prompt", http.MethodPut, "/prompts/"+url.PathEscape(id), in)
}

// DeletePrompt treats a prompt the server no longer knows as deleted.
func (c *Client) DeletePrompt(ctx context.Context, id string) error {
	err := c.doJSON(ctx, "delete prompt", http.MethodDelete, "/prompts/"+url.PathEscape(id), nil, nil, c.requestTimeout)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil
	}
	return err
}

func (c *Client) writePrompt(ctx context.Context, op, method, path string, in model.PromptInput) (model.Prompt, error) {
	var p model.Prompt
	if err := c.doJSON(ctx, op, method, path, in, &p, c.requestTimeout); err != nil {
		return model.Prompt{}, err
	}
	if p.ID == "" {
		return model.Prompt{}, apperr.InvalidResponse(op, "prompt id missing")
	}
	p.Library = in.Library
	return p, nil
}
