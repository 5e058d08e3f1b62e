package utils

import "encoding/json"

// ConvertStruct converts one value into another type through its json representation.
// Used to read loosely typed envelope payloads into concrete types.
func ConvertStruct[O any, T any](data O) (T, error) {
	var result T

	b, err := json.Marshal(data)
	if err != nil {
		return result, err
	}

	err = json.Unmarshal(b, &result)

	return result, err
}
