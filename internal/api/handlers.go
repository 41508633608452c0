package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/avsync/internal/action"
	"github.com/dgnsrekt/avsync/internal/types"
)

func registerHealthHandlers(api huma.API) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})
}

type messageInput struct {
	Body struct {
		TabID                   *int     `json:"tab_id,omitempty" doc:"Sender tab id. Omit for surfaces that are not a tab."`
		Message                 string   `json:"message" minLength:"1" doc:"Message kind, e.g. processSyncChange"`
		SyncValue               *float64 `json:"syncValue,omitempty"`
		MaxSelectableDelayValue *float64 `json:"maxSelectableDelayValue,omitempty"`
		MaxAcceptableDelayValue *float64 `json:"maxAcceptableDelayValue,omitempty"`
		AudioDevice             string   `json:"audioDevice,omitempty"`
	}
}

type messageOutput struct {
	Body struct {
		Response any `json:"response"`
	}
}

func registerMessageHandlers(api huma.API, svc Service, tabs types.TabInfoProvider) {
	huma.Register(api, huma.Operation{OperationID: "send-message", Method: http.MethodPost, Path: "/api/v1/messages", Summary: "Deliver a message to the coordinator", Tags: []string{"Messages"}},
		func(ctx context.Context, input *messageInput) (*messageOutput, error) {
			kind := types.MessageKind(input.Body.Message)
			if !kind.Inbound() {
				return nil, huma.Error400BadRequest(fmt.Sprintf("message %q is not accepted by the coordinator", kind))
			}
			msg := types.Message{
				Message:                 kind,
				SyncValue:               input.Body.SyncValue,
				MaxSelectableDelayValue: input.Body.MaxSelectableDelayValue,
				MaxAcceptableDelayValue: input.Body.MaxAcceptableDelayValue,
				AudioDevice:             input.Body.AudioDevice,
			}
			var sender types.Sender
			if input.Body.TabID != nil {
				if tabs == nil {
					return nil, mapErr(types.NewError(types.CodeTabNotFound, "tab lookup unavailable", nil))
				}
				tab, ok := tabs.Tab(types.TabID(*input.Body.TabID))
				if !ok {
					return nil, mapErr(types.NewError(types.CodeTabNotFound, "tab not found", nil))
				}
				sender.Tab = &tab
			}

			resp, err := svc.Dispatch(ctx, msg, sender)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &messageOutput{}
			out.Body.Response = resp
			return out, nil
		})
}

type modeOutput struct {
	Body struct {
		Mode string `json:"mode"`
	}
}

type stateOutput struct {
	Body struct {
		Mode            string       `json:"mode"`
		ActiveResources int          `json:"active_resources"`
		ResumePoints    int          `json:"resume_points"`
		Toolbar         action.State `json:"toolbar"`
	}
}

func registerModeHandlers(api huma.API, svc Service, toolbar ToolbarState) {
	huma.Register(api, huma.Operation{OperationID: "toggle", Method: http.MethodPost, Path: "/api/v1/toggle", Summary: "Toggle the extension mode", Tags: []string{"Mode"}},
		func(ctx context.Context, input *struct{}) (*modeOutput, error) {
			if err := svc.Toggle(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &modeOutput{}
			out.Body.Mode = svc.Snapshot().Mode
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "action-click", Method: http.MethodPost, Path: "/api/v1/action/click", Summary: "Click the toolbar button", Tags: []string{"Mode"}},
		func(ctx context.Context, input *struct{}) (*modeOutput, error) {
			if err := svc.ActionClicked(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &modeOutput{}
			out.Body.Mode = svc.Snapshot().Mode
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-state", Method: http.MethodGet, Path: "/api/v1/state", Summary: "Get coordinator state", Tags: []string{"Mode"}},
		func(ctx context.Context, input *struct{}) (*stateOutput, error) {
			snap := svc.Snapshot()
			out := &stateOutput{}
			out.Body.Mode = snap.Mode
			out.Body.ActiveResources = snap.ActiveResources
			out.Body.ResumePoints = snap.ResumePoints
			if toolbar != nil {
				out.Body.Toolbar = toolbar.State()
			}
			return out, nil
		})
}

func registerLinkHandlers(api huma.API, svc Service) {
	type linksOutput struct {
		Body struct {
			Links []string `json:"links"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-links", Method: http.MethodGet, Path: "/api/v1/links", Summary: "List toolbar menu links", Tags: []string{"Links"}},
		func(ctx context.Context, input *struct{}) (*linksOutput, error) {
			out := &linksOutput{}
			out.Body.Links = svc.Links()
			return out, nil
		})

	type openLinkInput struct {
		Name string `path:"name"`
	}
	type openLinkOutput struct {
		Body struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "open-link", Method: http.MethodPost, Path: "/api/v1/links/{name}", Summary: "Open a toolbar menu link in a new tab", Tags: []string{"Links"}},
		func(ctx context.Context, input *openLinkInput) (*openLinkOutput, error) {
			if err := svc.OpenLink(ctx, input.Name); err != nil {
				return nil, mapErr(err)
			}
			out := &openLinkOutput{}
			out.Body.Name = input.Name
			out.Body.Status = "opened"
			return out, nil
		})
}
