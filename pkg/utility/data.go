package utility

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

func registerDataFuncs(r *Registry) {
	reg(r, "data", "jsonParse", "Parse a JSON document", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		var out interface{}
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("jsonParse: %w", err)
		}
		return out, nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "data", "jsonStringify", "Serialize a value to JSON", func(args []interface{}) (interface{}, error) {
		v, err := argAt(args, 0)
		if err != nil {
			return nil, err
		}
		indent := optionalInt(args, 1, 0)
		var raw []byte
		var marshalErr error
		if indent > 0 {
			raw, marshalErr = json.MarshalIndent(v, "", strings.Repeat(" ", indent))
		} else {
			raw, marshalErr = json.Marshal(v)
		}
		if marshalErr != nil {
			return nil, marshalErr
		}
		return string(raw), nil
	}, Param{Name: "value", Type: "any", Required: true},
		Param{Name: "indent", Type: "number", Default: 0})

	reg(r, "data", "csvParse", "Parse CSV into rows of maps using the header line", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		reader := csv.NewReader(strings.NewReader(s))
		header, err := reader.Read()
		if err == io.EOF {
			return []interface{}{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csvParse: %w", err)
		}
		var rows []interface{}
		for {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("csvParse: %w", err)
			}
			row := make(map[string]interface{}, len(header))
			for i, col := range header {
				if i < len(record) {
					row[col] = record[i]
				}
			}
			rows = append(rows, row)
		}
		return rows, nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "data", "csvStringify", "Serialize rows of maps to CSV", func(args []interface{}) (interface{}, error) {
		v, err := argAt(args, 0)
		if err != nil {
			return nil, err
		}
		rows, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("csvStringify expects an array of objects")
		}
		if len(rows) == 0 {
			return "", nil
		}
		first, ok := rows[0].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("csvStringify expects an array of objects")
		}
		header := make([]string, 0, len(first))
		for col := range first {
			header = append(header, col)
		}
		sort.Strings(header)

		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		for _, raw := range rows {
			row, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("csvStringify expects an array of objects")
			}
			record := make([]string, len(header))
			for i, col := range header {
				record[i] = toString(row[col])
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
		w.Flush()
		return buf.String(), w.Error()
	}, Param{Name: "rows", Type: "array", Required: true})

	reg(r, "data", "xmlParse", "Parse XML into a nested map", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return parseXML(s)
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "data", "xmlStringify", "Serialize a nested map to XML", func(args []interface{}) (interface{}, error) {
		v, err := argAt(args, 0)
		if err != nil {
			return nil, err
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("xmlStringify expects an object")
		}
		var b strings.Builder
		writeXML(&b, m)
		return b.String(), nil
	}, Param{Name: "value", Type: "object", Required: true})

	reg(r, "data", "objectPath", "Read a dotted path from an object", func(args []interface{}) (interface{}, error) {
		v, err := argAt(args, 0)
		if err != nil {
			return nil, err
		}
		path, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		value, ok := objectPath(v, path)
		if !ok {
			return nil, nil
		}
		return value, nil
	}, Param{Name: "object", Type: "object", Required: true},
		Param{Name: "path", Type: "string", Required: true})

	reg(r, "data", "objectSetPath", "Set a dotted path on a copy of an object", func(args []interface{}) (interface{}, error) {
		v, err := argAt(args, 0)
		if err != nil {
			return nil, err
		}
		path, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		value, err := argAt(args, 2)
		if err != nil {
			return nil, err
		}
		clone := deepClone(v)
		if err := objectSetPath(clone, path, value); err != nil {
			return nil, err
		}
		return clone, nil
	}, Param{Name: "object", Type: "object", Required: true},
		Param{Name: "path", Type: "string", Required: true},
		Param{Name: "value", Type: "any", Required: true})

	reg(r, "data", "deepClone", "Deep copy of maps, slices, and scalars", func(args []interface{}) (interface{}, error) {
		v, err := argAt(args, 0)
		if err != nil {
			return nil, err
		}
		return deepClone(v), nil
	}, Param{Name: "value", Type: "any", Required: true})

	reg(r, "data", "merge", "Shallow-merge objects left to right", func(args []interface{}) (interface{}, error) {
		out := make(map[string]interface{})
		for _, raw := range args {
			m, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("merge expects objects, got %T", raw)
			}
			for k, v := range m {
				out[k] = v
			}
		}
		return out, nil
	})

	reg(r, "data", "flatten", "Flatten a nested object into dotted keys", func(args []interface{}) (interface{}, error) {
		v, err := argAt(args, 0)
		if err != nil {
			return nil, err
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("flatten expects an object")
		}
		out := make(map[string]interface{})
		flattenInto(out, "", m)
		return out, nil
	}, Param{Name: "value", Type: "object", Required: true})

	reg(r, "data", "unflatten", "Expand dotted keys into a nested object", func(args []interface{}) (interface{}, error) {
		v, err := argAt(args, 0)
		if err != nil {
			return nil, err
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unflatten expects an object")
		}
		out := make(map[string]interface{})
		for key, value := range m {
			if err := objectSetPath(out, key, value); err != nil {
				return nil, err
			}
		}
		return out, nil
	}, Param{Name: "value", Type: "object", Required: true})
}

func objectPath(v interface{}, path string) (interface{}, bool) {
	current := v
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func objectSetPath(v interface{}, path string, value interface{}) error {
	parts := strings.Split(path, ".")
	current, ok := v.(map[string]interface{})
	if !ok {
		return fmt.Errorf("cannot set path on %T", v)
	}
	for i, part := range parts {
		if i == len(parts)-1 {
			current[part] = value
			return nil
		}
		next, exists := current[part]
		child, isMap := next.(map[string]interface{})
		if !exists || !isMap {
			child = make(map[string]interface{})
			current[part] = child
		}
		current = child
	}
	return nil
}

func deepClone(v interface{}) interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(node))
		for k, child := range node {
			out[k] = deepClone(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(node))
		for i, child := range node {
			out[i] = deepClone(child)
		}
		return out
	default:
		return v
	}
}

func flattenInto(out map[string]interface{}, prefix string, m map[string]interface{}) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := v.(map[string]interface{}); ok {
			flattenInto(out, key, child)
			continue
		}
		out[key] = v
	}
}

// parseXML decodes an XML document into nested maps. Repeated sibling
// elements collapse into arrays; attributes are prefixed with "@".
func parseXML(s string) (interface{}, error) {
	decoder := xml.NewDecoder(strings.NewReader(s))
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("xmlParse: empty document")
		}
		if err != nil {
			return nil, fmt.Errorf("xmlParse: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			node, err := parseXMLElement(decoder, start)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{start.Name.Local: node}, nil
		}
	}
}

func parseXMLElement(decoder *xml.Decoder, start xml.StartElement) (interface{}, error) {
	node := make(map[string]interface{})
	for _, attr := range start.Attr {
		node["@"+attr.Name.Local] = attr.Value
	}
	var text strings.Builder

	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("xmlParse: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := parseXMLElement(decoder, t)
			if err != nil {
				return nil, err
			}
			name := t.Name.Local
			if existing, ok := node[name]; ok {
				if arr, isArr := existing.([]interface{}); isArr {
					node[name] = append(arr, child)
				} else {
					node[name] = []interface{}{existing, child}
				}
			} else {
				node[name] = child
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			content := strings.TrimSpace(text.String())
			if len(node) == 0 {
				return content, nil
			}
			if content != "" {
				node["#text"] = content
			}
			return node, nil
		}
	}
}

func writeXML(b *strings.Builder, m map[string]interface{}) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeXMLElement(b, k, m[k])
	}
}

func writeXMLElement(b *strings.Builder, name string, v interface{}) {
	switch node := v.(type) {
	case map[string]interface{}:
		b.WriteString("<" + name)
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if strings.HasPrefix(k, "@") {
				fmt.Fprintf(b, " %s=%q", k[1:], toString(node[k]))
			}
		}
		b.WriteString(">")
		for _, k := range keys {
			if k == "#text" {
				xml.EscapeText(b, []byte(toString(node[k])))
			} else if !strings.HasPrefix(k, "@") {
				writeXMLElement(b, k, node[k])
			}
		}
		b.WriteString("</" + name + ">")
	case []interface{}:
		for _, item := range node {
			writeXMLElement(b, name, item)
		}
	default:
		b.WriteString("<" + name + ">")
		xml.EscapeText(b, []byte(toString(v)))
		b.WriteString("</" + name + ">")
	}
}
