package store

import (
	"github.com/erazemk/izmenjava/internal/codec"
	"github.com/erazemk/izmenjava/internal/model"
)

var itemSchema = codec.Schema{
	{Name: "item_id", Integer: true},
	{Name: "donor_username", MaxLen: model.MaxUsernameLen, Required: true},
	{Name: "category", MaxLen: model.MaxCategoryLen},
	{Name: "description", MaxLen: model.MaxDescriptionLen},
	{Name: "condition", MaxLen: model.MaxConditionLen},
	{Name: "status", MaxLen: model.MaxStatusLen, Required: true},
}

var requestSchema = codec.Schema{
	{Name: "request_id", Integer: true},
	{Name: "item_id", Integer: true},
	{Name: "recipient_username", MaxLen: model.MaxUsernameLen, Required: true},
	{Name: "status", MaxLen: model.MaxStatusLen, Required: true},
}

var intentSchema = codec.Schema{
	{Name: "intent_id", MaxLen: 36, Required: true},
	{Name: "request_id", Integer: true},
	{Name: "item_id", Integer: true},
	{Name: "state", MaxLen: model.MaxStatusLen, Required: true},
}

type itemCodec struct{}

func (itemCodec) Header() string { return itemSchema.Header() }

func (itemCodec) Encode(it model.Item) (string, error) {
	return itemSchema.Join(codec.Itoa(it.ID), it.Donor, it.Category, it.Description, it.Condition, it.Status)
}

func (itemCodec) Decode(line string) (model.Item, error) {
	v, err := itemSchema.Split(line)
	if err != nil {
		return model.Item{}, err
	}
	return model.Item{
		ID:          codec.Int(v, 0),
		Donor:       v[1],
		Category:    v[2],
		Description: v[3],
		Condition:   v[4],
		Status:      v[5],
	}, nil
}

func (itemCodec) ID(it model.Item) int64 { return it.ID }

type requestCodec struct{}

func (requestCodec) Header() string { return requestSchema.Header() }

func (requestCodec) Encode(r model.Request) (string, error) {
	return requestSchema.Join(codec.Itoa(r.ID), codec.Itoa(r.ItemID), r.Recipient, r.Status)
}

func (requestCodec) Decode(line string) (model.Request, error) {
	v, err := requestSchema.Split(line)
	if err != nil {
		return model.Request{}, err
	}
	return model.Request{
		ID:        codec.Int(v, 0),
		ItemID:    codec.Int(v, 1),
		Recipient: v[2],
		Status:    v[3],
	}, nil
}

func (requestCodec) ID(r model.Request) int64 { return r.ID }

// intent is one row of the approval journal.
type intent struct {
	ID        string
	RequestID int64
	ItemID    int64
	State     string
}

// Intent states.
const (
	intentStarted   = "started"
	intentCommitted = "committed"
)

type intentCodec struct{}

func (intentCodec) Header() string { return intentSchema.Header() }

func (intentCodec) Encode(in intent) (string, error) {
	return intentSchema.Join(in.ID, codec.Itoa(in.RequestID), codec.Itoa(in.ItemID), in.State)
}

func (intentCodec) Decode(line string) (intent, error) {
	v, err := intentSchema.Split(line)
	if err != nil {
		return intent{}, err
	}
	return intent{ID: v[0], RequestID: codec.Int(v, 1), ItemID: codec.Int(v, 2), State: v[3]}, nil
}

// ID orders journal rows by request; journal rows never take ids from it.
func (intentCodec) ID(in intent) int64 { return in.RequestID }
