package remote

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/fekuna/omnipos-sync/internal/model"
)

// Entities in steady-state pull order.
const (
	EntityUsers    = "users"
	EntityRates    = "rates"
	EntityDebts    = "debts"
	EntityProducts = "products"
	EntitySales    = "sales"
)

var PullOrder = []string{EntityUsers, EntityRates, EntityDebts, EntityProducts, EntitySales}

// Op is one outbox operation on the wire.
type Op struct {
	OpID    string          `json:"op_id"`
	Entity  string          `json:"entity"`
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload"`
}

type pushRequest struct {
	Action   string `json:"action"`
	DeviceID string `json:"device_id"`
	Ops      []Op   `json:"ops"`
}

// Route maps an operation type to the remote entity and verb.
func Route(t model.OpType) (entity, op string, ok bool) {
	switch t {
	case model.OpProductPatch:
		return "products", "upsert", true
	case model.OpUnitPatch:
		return "product_units", "upsert", true
	case model.OpStockMove:
		return "stock_moves", "delta", true
	case model.OpSale:
		return "sales", "upsert", true
	}
	return "", "", false
}

// NewOp converts a stored operation into its wire form.
func NewOp(op *model.SyncOperation) (Op, bool) {
	entity, verb, ok := Route(op.OpType)
	if !ok {
		return Op{}, false
	}
	payload := json.RawMessage(op.Payload)
	if !json.Valid(payload) {
		return Op{}, false
	}
	return Op{OpID: op.OpID, Entity: entity, Op: verb, Payload: payload}, true
}

type PushResponse struct {
	Success    bool              `json:"success"`
	Applied    []AppliedRef      `json:"applied"`
	Conflicts  []Conflict        `json:"conflicts"`
	Propagated []json.RawMessage `json:"propagated"`
	ServerTime string            `json:"server_time"`
	Error      string            `json:"error"`
}

// AppliedIDs returns the acknowledged op ids.
func (r *PushResponse) AppliedIDs() []string {
	ids := make([]string, 0, len(r.Applied))
	for _, a := range r.Applied {
		if a != "" {
			ids = append(ids, string(a))
		}
	}
	return ids
}

// AppliedRef is an acknowledged op id, sent either as a bare string or as
// {"op_id": "..."}.
type AppliedRef string

func (a *AppliedRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = AppliedRef(s)
		return nil
	}
	var obj struct {
		OpID string `json:"op_id"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.OpID != "" {
		*a = AppliedRef(obj.OpID)
	} else {
		*a = AppliedRef(obj.ID)
	}
	return nil
}

type Conflict struct {
	OpID  string `json:"op_id"`
	Error string `json:"error"`
}

type PullRequest struct {
	Entity    string
	Since     time.Time
	Full      bool
	Cursor    string
	Limit     int
	UnitLevel model.UnitLevel
}

type PullResponse struct {
	Success    bool   `json:"success"`
	Data       []Row  `json:"data"`
	Count      int    `json:"count"`
	NextCursor Cursor `json:"next_cursor"`
	Done       bool   `json:"done"`
	Error      string `json:"error"`
}

// Cursor accepts a string, a number or null.
type Cursor string

func (c *Cursor) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*c = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Cursor(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*c = Cursor(n.String())
	}
	return nil
}

func formatSince(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func formatLimit(n int) string {
	return strconv.Itoa(n)
}
