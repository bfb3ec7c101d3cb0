package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/kailas-cloud/ragq/internal/domain"
)

// Version returns the revision token of a lookup document: the first 16 hex
// digits of its SHA-256. Publishers put the same token into publish events.
func Version(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// ParseLookup reads a lookup document. Accepted shapes:
//
//	["Erling Haaland", "Bukayo Saka"]
//	{"haaland": "Erling Haaland"}        string values are names
//	{"Erling Haaland": {"club": "..."}}  otherwise keys are names
//	{"entities": ["Erling Haaland"]}     nested arrays are flattened
func ParseLookup(data []byte) (domain.EntityLookup, error) {
	if !gjson.ValidBytes(data) {
		return domain.EntityLookup{}, fmt.Errorf("lookup document is not valid JSON")
	}
	doc := gjson.ParseBytes(data)

	var names []string
	switch {
	case doc.IsArray():
		names = stringItems(doc)
	case doc.IsObject():
		doc.ForEach(func(k, v gjson.Result) bool {
			switch {
			case v.Type == gjson.String:
				names = append(names, v.String())
			case v.IsArray():
				names = append(names, stringItems(v)...)
			default:
				names = append(names, k.String())
			}
			return true
		})
	default:
		return domain.EntityLookup{}, fmt.Errorf("lookup document must be a JSON array or object")
	}

	return domain.NewEntityLookup(Version(data), names), nil
}

func stringItems(arr gjson.Result) []string {
	var out []string
	arr.ForEach(func(_, v gjson.Result) bool {
		if v.Type == gjson.String {
			out = append(out, v.String())
		}
		return true
	})
	return out
}
