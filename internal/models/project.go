package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ProjectType is the kind of work a project represents.
type ProjectType string

const (
	TypeMockups       ProjectType = "Mockups"
	TypeProposals     ProjectType = "Proposals"
	TypePresentations ProjectType = "Presentations"
	TypeCredentials   ProjectType = "Credentials"
	TypeRFP           ProjectType = "RFP"
	TypeAIWork        ProjectType = "AI Work"
	TypeCreativeWork  ProjectType = "Creative Work"
)

// ProjectTypes lists every accepted project type in display order.
var ProjectTypes = []ProjectType{
	TypeMockups,
	TypeProposals,
	TypePresentations,
	TypeCredentials,
	TypeRFP,
	TypeAIWork,
	TypeCreativeWork,
}

// Valid reports whether t is one of ProjectTypes.
func (t ProjectType) Valid() bool {
	for _, v := range ProjectTypes {
		if t == v {
			return true
		}
	}
	return false
}

func (t *ProjectType) UnmarshalJSON(b []byte) error {
	s, err := decodeEnum(b, "projectType")
	if err != nil {
		return err
	}
	v := ProjectType(s)
	if s != "" && !v.Valid() {
		return FieldError("projectType", "must be one of Mockups, Proposals, Presentations, Credentials, RFP, AI Work, Creative Work")
	}
	*t = v
	return nil
}

// Category grades the complexity of document-style work.
type Category string

const (
	CategorySimple  Category = "Simple"
	CategoryMedium  Category = "Medium"
	CategoryComplex Category = "Complex"
)

var Categories = []Category{CategorySimple, CategoryMedium, CategoryComplex}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

func (c *Category) UnmarshalJSON(b []byte) error {
	s, err := decodeEnum(b, "category")
	if err != nil {
		return err
	}
	v := Category(s)
	if s != "" && !v.Valid() {
		return FieldError("category", "must be one of Simple, Medium, Complex")
	}
	*c = v
	return nil
}

// Status is a project's position in the delivery pipeline.
type Status string

const (
	StatusNew              Status = "New"
	StatusSentToCEO        Status = "Sent to CEO"
	StatusApprovedByClient Status = "Approved by Client"
	StatusInvoiceRaised    Status = "Invoice Raised"
)

// Statuses is the pipeline in order.
var Statuses = []Status{
	StatusNew,
	StatusSentToCEO,
	StatusApprovedByClient,
	StatusInvoiceRaised,
}

func (s Status) Valid() bool {
	return s.Index() >= 0
}

// Index returns the position of s in the pipeline, or -1.
func (s Status) Index() int {
	for i, v := range Statuses {
		if s == v {
			return i
		}
	}
	return -1
}

// ParseStatus converts raw into a Status, rejecting anything outside the pipeline.
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	return s, s.Valid()
}

func (s *Status) UnmarshalJSON(b []byte) error {
	raw, err := decodeEnum(b, "status")
	if err != nil {
		return err
	}
	v := Status(raw)
	if raw != "" && !v.Valid() {
		return FieldError("status", "must be one of New, Sent to CEO, Approved by Client, Invoice Raised")
	}
	*s = v
	return nil
}

func decodeEnum(b []byte, field string) (string, error) {
	if string(b) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return "", FieldError(field, "must be a string")
	}
	return s, nil
}

// Project is a tracked unit of work.
type Project struct {
	ID            string      `json:"id"`
	ProjectName   string      `json:"projectName"`
	ProjectType   ProjectType `json:"projectType"`
	Category      *Category   `json:"category,omitempty"`
	HoursWorked   *float64    `json:"hoursWorked,omitempty"`
	DateReceived  Date        `json:"dateReceived"`
	DateDelivered *Date       `json:"dateDelivered,omitempty"`
	ContactPerson string      `json:"contactPerson"`
	EndClientName string      `json:"endClientName"`
	Status        Status      `json:"status"`
	Notes         *string     `json:"notes,omitempty"`
	CreatedBy     string      `json:"createdBy"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// ProjectInput carries the client-writable fields of a project for both
// create and partial update. Keys such as id and createdBy have no field
// here, so the decoder drops them.
type ProjectInput struct {
	ProjectName   *string      `json:"projectName,omitempty"`
	ProjectType   *ProjectType `json:"projectType,omitempty"`
	Category      *Category    `json:"category,omitempty"`
	HoursWorked   *float64     `json:"hoursWorked,omitempty"`
	DateReceived  *Date        `json:"dateReceived,omitempty"`
	DateDelivered *Date        `json:"dateDelivered,omitempty"`
	ContactPerson *string      `json:"contactPerson,omitempty"`
	EndClientName *string      `json:"endClientName,omitempty"`
	Status        *Status      `json:"status,omitempty"`
	Notes         *string      `json:"notes,omitempty"`
}

// UnmarshalJSON decodes the dates separately so a bad value is reported
// under its own field name.
func (in *ProjectInput) UnmarshalJSON(b []byte) error {
	type plain ProjectInput
	var aux struct {
		plain
		DateReceived  json.RawMessage `json:"dateReceived,omitempty"`
		DateDelivered json.RawMessage `json:"dateDelivered,omitempty"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*in = ProjectInput(aux.plain)

	var err error
	if in.DateReceived, err = decodeDate(aux.DateReceived, "dateReceived"); err != nil {
		return err
	}
	if in.DateDelivered, err = decodeDate(aux.DateDelivered, "dateDelivered"); err != nil {
		return err
	}
	return nil
}

func decodeDate(raw json.RawMessage, field string) (*Date, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var d Date
	if err := d.UnmarshalJSON(raw); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return nil, FieldError(field, verr.Fields["date"])
		}
		return nil, err
	}
	return &d, nil
}

// Empty reports whether the input sets no field at all.
func (in ProjectInput) Empty() bool {
	return in == ProjectInput{}
}

// ApplyTo copies every set field of in onto p.
func (in ProjectInput) ApplyTo(p *Project) {
	if in.ProjectName != nil {
		p.ProjectName = *in.ProjectName
	}
	if in.ProjectType != nil {
		p.ProjectType = *in.ProjectType
	}
	if in.Category != nil {
		c := *in.Category
		p.Category = &c
	}
	if in.HoursWorked != nil {
		h := *in.HoursWorked
		p.HoursWorked = &h
	}
	if in.DateReceived != nil {
		p.DateReceived = *in.DateReceived
	}
	if in.DateDelivered != nil {
		d := *in.DateDelivered
		p.DateDelivered = &d
	}
	if in.ContactPerson != nil {
		p.ContactPerson = *in.ContactPerson
	}
	if in.EndClientName != nil {
		p.EndClientName = *in.EndClientName
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if in.Notes != nil {
		n := *in.Notes
		p.Notes = &n
	}
}

// BulkStatusRequest is the body of a bulk status update.
type BulkStatusRequest struct {
	ProjectIDs []string `json:"projectIds"`
	Status     string   `json:"status"`
}

// Outcome of a bulk update for a single identifier.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeRejected  Outcome = "rejected"
)

type BulkItemResult struct {
	ID      string  `json:"id"`
	Outcome Outcome `json:"outcome"`
}

// BulkStatusResult reports what a bulk update changed.
type BulkStatusResult struct {
	Message       string           `json:"message"`
	Status        Status           `json:"status"`
	Requested     int              `json:"requested"`
	ModifiedCount int              `json:"modifiedCount"`
	Results       []BulkItemResult `json:"results"`
}

// Stats is the dashboard overview.
type Stats struct {
	NewProjects      int64   `json:"newProjects"`
	SentToCEO        int64   `json:"sentToCEO"`
	ApprovedByClient int64   `json:"approvedByClient"`
	InvoiceRaised    int64   `json:"invoiceRaised"`
	TotalProjects    int64   `json:"totalProjects"`
	TotalHours       float64 `json:"totalHours"`
}

// SortField orders query results by a canonical project field name.
type SortField struct {
	Field string
	Desc  bool
}

// ProjectQuery filters a project listing.
type ProjectQuery struct {
	Status Status // empty means any
	Search string
	Sort   []SortField
	Limit  int // 0 means no limit
	Offset int
}
