package xref

import (
	"github.com/kugler-labs/pdfcore/filter"
	"github.com/kugler-labs/pdfcore/object"
	"github.com/kugler-labs/pdfcore/pdferr"
)

// filterChainFromDict reads a stream dictionary's /Filter and
// /DecodeParms (accepting the abbreviated /F, /DP forms used by inline
// images, harmlessly for regular streams too) and builds the filter
// Chain that decodes it.
func filterChainFromDict(dict *object.Dict) (filter.Chain, error) {
	names, err := filterNames(dict)
	if err != nil {
		return filter.Chain{}, err
	}
	if len(names) == 0 {
		return filter.Chain{}, nil
	}

	parmsVal, ok := dict.Get("DecodeParms")
	if !ok {
		parmsVal, ok = dict.Get("DP")
	}
	params := make([]filter.Params, len(names))
	for i := range params {
		params[i] = filter.DefaultParams()
	}
	if ok {
		if err := fillParams(parmsVal, params); err != nil {
			return filter.Chain{}, err
		}
	}

	return filter.Chain{Filters: names, Params: params}, nil
}

func filterNames(dict *object.Dict) ([]filter.Name, error) {
	v, ok := dict.Get("Filter")
	if !ok {
		v, ok = dict.Get("F")
		if !ok {
			return nil, nil
		}
	}
	switch t := v.(type) {
	case object.Name:
		return []filter.Name{filter.Name(t)}, nil
	case *object.Array:
		out := make([]filter.Name, 0, t.Len())
		for i := 0; i < t.Len(); i++ {
			n, ok := t.At(i).(object.Name)
			if !ok {
				return nil, pdferr.New(pdferr.BrokenFile, "/Filter array entry is not a name")
			}
			out = append(out, filter.Name(n))
		}
		return out, nil
	case object.Null:
		return nil, nil
	default:
		return nil, pdferr.New(pdferr.BrokenFile, "/Filter is neither a name nor an array")
	}
}

func fillParams(v object.Value, out []filter.Params) error {
	switch t := v.(type) {
	case *object.Dict:
		if len(out) == 0 {
			return nil
		}
		fillOneParams(t, &out[0])
	case *object.Array:
		for i := 0; i < t.Len() && i < len(out); i++ {
			d, ok := t.At(i).(*object.Dict)
			if !ok {
				continue // Null is the documented "no params for this filter" marker
			}
			fillOneParams(d, &out[i])
		}
	case object.Null:
	default:
		return pdferr.New(pdferr.BrokenFile, "/DecodeParms is neither a dictionary nor an array")
	}
	return nil
}

func fillOneParams(d *object.Dict, p *filter.Params) {
	if i, err := object.AsNumberLenient(d.GetOrNull("Predictor")); err == nil {
		p.Predictor = int(i)
	}
	if i, err := object.AsNumberLenient(d.GetOrNull("Colors")); err == nil {
		p.Colors = int(i)
	}
	if i, err := object.AsNumberLenient(d.GetOrNull("BitsPerComponent")); err == nil {
		p.BitsPerComponent = int(i)
	}
	if i, err := object.AsNumberLenient(d.GetOrNull("Columns")); err == nil {
		p.Columns = int(i)
	}
	if i, err := object.AsNumberLenient(d.GetOrNull("EarlyChange")); err == nil {
		p.EarlyChange = int(i)
		p.HasEarlyChange = true
	}
	if i, err := object.AsNumberLenient(d.GetOrNull("K")); err == nil {
		p.K = int(i)
	}
	if i, err := object.AsNumberLenient(d.GetOrNull("Rows")); err == nil {
		p.Rows = int(i)
	}
	if b, err := object.AsBool(d.GetOrNull("BlackIs1")); err == nil {
		p.BlackIs1 = b
	}
	if b, err := object.AsBool(d.GetOrNull("EncodedByteAlign")); err == nil {
		p.EncodedByteAlign = b
	}
	if b, err := object.AsBool(d.GetOrNull("EndOfBlock")); err == nil {
		p.EndOfBlock = b
	}
	if n, err := object.AsName(d.GetOrNull("Name")); err == nil {
		p.CryptFilterName = string(n)
	}
}
