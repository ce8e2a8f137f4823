package mongo

import (
	"fmt"
	"reflect"

	"github.com/marmos91/docftp/pkg/backend"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	// blobField holds the payload of documents created from non-JSON uploads.
	blobField = "__ftp_blob"

	// implicitIDField marks documents whose _id was taken from the file name.
	implicitIDField = "__ftp_implicit_id"
)

// sizePipeline projects each document to its identifier and listing size.
var sizePipeline = mongo.Pipeline{
	{{Key: "$project", Value: bson.D{
		{Key: "_id", Value: 1},
		{Key: "size", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: "$" + blobField}}, "binData"}}},
			bson.D{{Key: "$binarySize", Value: "$" + blobField}},
			bson.D{{Key: "$bsonSize", Value: "$$ROOT"}},
		}}}},
	}}},
}

// buildDocument converts an upload into the document stored under name.
//
// target is the _id given to payloads that carry none. A structured payload
// keeps its own _id when it has one, which must render as name; otherwise
// target is prepended and implicitIDField marks the _id for removal on
// render, so the payload comes back byte for byte. Payloads that are not
// valid Extended JSON objects are wrapped as {_id, __ftp_blob: BinData}.
func buildDocument(target any, name string, data []byte) (bson.D, error) {
	if kind, stored := backend.Classify(data); kind == backend.KindDocument {
		var doc bson.D
		if err := bson.UnmarshalExtJSON(stored, false, &doc); err == nil {
			if id, ok := documentID(doc); ok {
				if formatID(id) != name {
					return nil, fmt.Errorf("%w: _id %s stored as %s", errIDMismatch, formatID(id), name)
				}
				return doc, nil
			}
			doc = append(bson.D{{Key: "_id", Value: target}}, doc...)
			return append(doc, bson.E{Key: implicitIDField, Value: true}), nil
		}
	}
	return bson.D{
		{Key: "_id", Value: target},
		{Key: blobField, Value: primitive.Binary{Subtype: 0x00, Data: data}},
	}, nil
}

// prepareUpsert builds the replacement for name and the _id to upsert it
// under. existing is the _id of the document currently listed as name, if
// found, so a STOR over an ObjectID document replaces that document.
func prepareUpsert(name string, existing any, found bool, data []byte) (any, bson.D, error) {
	target := any(name)
	if found {
		target = existing
	}

	doc, err := buildDocument(target, name, data)
	if err != nil {
		return nil, nil, err
	}

	id, _ := documentID(doc)
	if found && !reflect.DeepEqual(id, existing) {
		return nil, nil, fmt.Errorf("%w: %s already exists with a different _id type", errIDMismatch, name)
	}
	return id, doc, nil
}

// documentID returns the _id of doc, if present.
func documentID(doc bson.D) (any, bool) {
	for _, e := range doc {
		if e.Key == "_id" {
			return e.Value, true
		}
	}
	return nil, false
}

// renderDocument returns the bytes sent for RETR: the raw payload of a blob
// document, relaxed Extended JSON otherwise. An _id added by buildDocument is
// left out together with its marker.
func renderDocument(raw bson.Raw) ([]byte, error) {
	if _, data, ok := raw.Lookup(blobField).BinaryOK(); ok {
		return data, nil
	}

	implicit, _ := raw.Lookup(implicitIDField).BooleanOK()
	if !implicit {
		return bson.MarshalExtJSON(raw, false, false)
	}

	elems, err := raw.Elements()
	if err != nil {
		return nil, err
	}
	doc := make(bson.D, 0, len(elems))
	for _, e := range elems {
		if key := e.Key(); key != "_id" && key != implicitIDField {
			doc = append(doc, bson.E{Key: key, Value: e.Value()})
		}
	}
	return bson.MarshalExtJSON(doc, false, false)
}

// formatID renders a document identifier as a listing name.
func formatID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case primitive.ObjectID:
		return v.Hex()
	default:
		return fmt.Sprint(v)
	}
}

// idCandidates lists the _id values a listing name may stand for: the string
// itself and, for 24-digit hex names, the ObjectID it renders.
func idCandidates(name string) []any {
	candidates := []any{name}
	if oid, err := primitive.ObjectIDFromHex(name); err == nil {
		candidates = append(candidates, oid)
	}
	return candidates
}
