package models

import "github.com/google/uuid"

// Document tracks one financial instrument in the external accounting system.
// Its reference matches the accounting document id. Status moves CREATED ->
// CONFIRMED -> CANCELED only; confirmation requires CREATED and cancellation
// requires CONFIRMED.
type Document struct {
	Reference uuid.UUID
	Type      DocumentType
	Status    DocumentStatus
}

func (d *Document) IsCreated() bool   { return d.Status == DocumentCreated }
func (d *Document) IsConfirmed() bool { return d.Status == DocumentConfirmed }
func (d *Document) IsCanceled() bool  { return d.Status == DocumentCanceled }

// Confirm moves the document to CONFIRMED. No-op unless currently CREATED.
func (d *Document) Confirm() {
	if d.Status == DocumentCreated {
		d.Status = DocumentConfirmed
	}
}

// Cancel moves the document to CANCELED. No-op unless currently CONFIRMED.
func (d *Document) Cancel() {
	if d.Status == DocumentConfirmed {
		d.Status = DocumentCanceled
	}
}

// DocumentCollection holds the reward documents of one insurance state.
// Lookups skip canceled documents, so a fresh document of the same type may be
// created after a prior one was canceled.
type DocumentCollection struct {
	documents []*Document
}

// NewDocumentCollection wraps persisted documents.
func NewDocumentCollection(documents ...*Document) *DocumentCollection {
	return &DocumentCollection{documents: documents}
}

// Documents returns copies of all documents, canceled ones included.
func (c *DocumentCollection) Documents() []*Document {
	out := make([]*Document, 0, len(c.documents))
	for _, d := range c.documents {
		cp := *d
		out = append(out, &cp)
	}
	return out
}

// Add appends a document.
func (c *DocumentCollection) Add(document *Document) {
	c.documents = append(c.documents, document)
}

// ByType returns the live (non-canceled) document of the given type, or nil.
func (c *DocumentCollection) ByType(documentType DocumentType) *Document {
	for _, d := range c.documents {
		if d.Type == documentType && d.Status != DocumentCanceled {
			return d
		}
	}
	return nil
}

func (c *DocumentCollection) clone() *DocumentCollection {
	cp := &DocumentCollection{documents: make([]*Document, 0, len(c.documents))}
	for _, d := range c.documents {
		dc := *d
		cp.documents = append(cp.documents, &dc)
	}
	return cp
}
