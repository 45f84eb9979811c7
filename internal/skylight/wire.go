package skylight

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/skylight-chores/internal/model"
)

// resourceID はJSON:API形式のIDを表す。
// Skylightは文字列と数値のどちらでIDを返すこともあるため両方を受け付ける。
type resourceID string

// UnmarshalJSON は文字列・数値・nullのIDを文字列として読み取る。
func (id *resourceID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = resourceID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid resource id %s: %w", data, err)
	}
	*id = resourceID(n.String())
	return nil
}

type sessionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Data struct {
		ID         resourceID `json:"id"`
		Attributes struct {
			Token string `json:"token"`
		} `json:"attributes"`
	} `json:"data"`
}

type frameResource struct {
	ID resourceID `json:"id"`
}

type categoryResource struct {
	ID         resourceID `json:"id"`
	Attributes struct {
		Label           string `json:"label"`
		LinkedToProfile bool   `json:"linked_to_profile"`
	} `json:"attributes"`
}

type relationship struct {
	Data *struct {
		ID resourceID `json:"id"`
	} `json:"data"`
}

type choreResource struct {
	ID         resourceID `json:"id"`
	Attributes struct {
		Summary string `json:"summary"`
		Status  string `json:"status"`
	} `json:"attributes"`
	Relationships struct {
		Category relationship `json:"category"`
	} `json:"relationships"`
}

// listResponse はJSON:APIのコレクションレスポンス。
type listResponse[T any] struct {
	Data []T `json:"data"`
}

func (r frameResource) toModel() model.Frame {
	return model.Frame{ID: string(r.ID)}
}

func (r categoryResource) toModel() model.Category {
	return model.Category{
		ID:              string(r.ID),
		Label:           r.Attributes.Label,
		LinkedToProfile: r.Attributes.LinkedToProfile,
	}
}

func (r choreResource) toModel() model.Chore {
	c := model.Chore{
		ID:      string(r.ID),
		Summary: r.Attributes.Summary,
		Status:  r.Attributes.Status,
	}
	if r.Relationships.Category.Data != nil {
		c.CategoryID = string(r.Relationships.Category.Data.ID)
	}
	return c
}
