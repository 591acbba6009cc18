package event

import (
	"encoding/json"
	"strconv"
)

// GeWe nests most scalar payload fields one level deep, e.g.
// "FromUserName": {"string": "wxid_abc"}. The field helpers accept both the
// nested and the flat form.

func strField(data map[string]interface{}, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case map[string]interface{}:
		if s, ok := v["string"].(string); ok {
			return s
		}
	}
	return ""
}

func intField(data map[string]interface{}, key string) int {
	return int(int64Field(data, key))
}

func int64Field(data map[string]interface{}, key string) int64 {
	switch v := data[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// ExtractMsgID pulls the provider message id out of a raw Data payload,
// checking the top level and one level of nesting under "Data".
func ExtractMsgID(data map[string]interface{}) int64 {
	if id := int64Field(data, "NewMsgId"); id != 0 {
		return id
	}
	if nested, ok := data["Data"].(map[string]interface{}); ok {
		return int64Field(nested, "NewMsgId")
	}
	return 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
