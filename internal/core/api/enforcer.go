package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/commissar/internal/entity"
	"github.com/solatis/commissar/internal/enforce"
	"github.com/solatis/commissar/internal/rules"
	"github.com/solatis/commissar/internal/types"
)

// Request is the JSON shape of an Evaluate or Save request.
type Request struct {
	Event  string           `json:"event,omitempty"`
	Record *entity.Document `json:"record"`
}

// RuleError describes one failing rule.
type RuleError struct {
	Rule        string `json:"rule"`
	Field       string `json:"field,omitempty"`
	Message     string `json:"message"`
	Failure     string `json:"failure"`
	AbortOnFail bool   `json:"abort_on_fail"`
}

// StatusReport is the tally for one tracked status. Progress is omitted
// when the status had no attempts.
type StatusReport struct {
	Attempts int  `json:"attempts"`
	Passes   int  `json:"passes"`
	Progress *int `json:"progress,omitempty"`
}

// Response is the JSON shape of an Evaluate or Save response.
type Response struct {
	Passed      bool                    `json:"passed"`
	Abort       bool                    `json:"abort"`
	Errors      []RuleError             `json:"errors"`
	Statuses    map[string]StatusReport `json:"statuses"`
	Achieved    []string                `json:"achieved"`
	Failed      []string                `json:"failed"`
	Stored      *bool                   `json:"stored,omitempty"`
	FieldErrors map[string][]string     `json:"field_errors,omitempty"`
	BaseErrors  []string                `json:"base_errors,omitempty"`
	Record      *entity.Document        `json:"record,omitempty"`
}

// Evaluate runs the rules for the request event (default "Save") against
// the record without persisting it.
func (s *EnforcerService) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, rec, err := decodeRequest(req)
	if err != nil {
		return nil, err
	}
	event := in.Event
	if event == "" {
		event = enforce.EventSave
	}

	card := s.enforcer.CheckRecord(ctx, rec, event)
	if err := ctx.Err(); err != nil {
		return nil, toStatus(err, codes.Internal)
	}
	return encodeResponse(NewResponse(card))
}

// Save enforces the "Save" rules and persists the record unless they abort.
func (s *EnforcerService) Save(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, rec, err := decodeRequest(req)
	if err != nil {
		return nil, err
	}
	if in.Event != "" && in.Event != enforce.EventSave {
		return nil, status.Errorf(codes.InvalidArgument, "save does not accept event %q", in.Event)
	}

	card, err := s.enforcer.Save(ctx, rec)
	stored := err == nil
	if err != nil && !errors.Is(err, types.ErrSaveAborted) {
		s.logger.Error("Save failed", "record", rec.String(), "error", err)
		return nil, toStatus(err, codes.Unavailable)
	}

	return encodeResponse(NewSaveResponse(card, rec, stored))
}

// NewResponse summarizes card.
func NewResponse(card *rules.ResultCard) *Response {
	resp := &Response{
		Passed:   card.Passed(),
		Abort:    card.AbortEvent(),
		Errors:   []RuleError{},
		Statuses: make(map[string]StatusReport),
		Achieved: orEmpty(card.AchievedStatuses()),
		Failed:   orEmpty(card.FailedStatuses()),
	}
	for _, r := range card.Errors() {
		re := RuleError{
			Field:       r.Field(),
			Message:     r.ErrorMessage(),
			Failure:     r.Failure,
			AbortOnFail: r.AbortOnFail,
		}
		if r.Rule != nil {
			re.Rule = r.Rule.Name
		}
		resp.Errors = append(resp.Errors, re)
	}
	for _, label := range card.TrackedStatuses() {
		tally, _ := card.Tally(label)
		report := StatusReport{Attempts: tally.Attempts, Passes: tally.Passes}
		if pct, ok := card.StatusProgressPercentage(label); ok {
			report.Progress = &pct
		}
		resp.Statuses[label] = report
	}
	return resp
}

// NewSaveResponse summarizes a save of rec. The record is included only
// when it was stored.
func NewSaveResponse(card *rules.ResultCard, rec *entity.Record, stored bool) *Response {
	resp := NewResponse(card)
	resp.Stored = &stored
	resp.FieldErrors = rec.Errors().Fields
	resp.BaseErrors = rec.Errors().Base
	if stored {
		doc := entity.DocumentOf(rec)
		resp.Record = &doc
	}
	return resp
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func decodeRequest(req *structpb.Struct) (*Request, *entity.Record, error) {
	data, err := protojson.Marshal(req)
	if err != nil {
		return nil, nil, status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	var in Request
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, nil, status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	if in.Record == nil {
		return nil, nil, status.Error(codes.InvalidArgument, "request has no record")
	}
	rec, err := in.Record.Record()
	if err != nil {
		return nil, nil, status.Errorf(codes.InvalidArgument, "invalid record: %v", err)
	}
	return &in, rec, nil
}

func encodeResponse(resp *Response) (*structpb.Struct, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// NewRequest builds a request Struct for event and doc. doc fields must be
// wire-encoded, as DocumentOf returns them.
func NewRequest(event string, doc entity.Document) (*structpb.Struct, error) {
	data, err := json.Marshal(Request{Event: event, Record: &doc})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return out, nil
}

// DecodeResponse converts a response Struct back into a Response.
func DecodeResponse(s *structpb.Struct) (*Response, error) {
	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}
