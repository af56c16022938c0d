package fcm

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// Fixed platform delivery hints.
const (
	androidPriority    = "high"
	defaultSound       = "default"
	flutterClickAction = "FLUTTER_NOTIFICATION_CLICK"
	apnsBadge          = 1
)

type sendRequest struct {
	Message message `json:"message"`
}

type message struct {
	Token        string            `json:"token"`
	Notification notification      `json:"notification"`
	Data         map[string]string `json:"data"`
	Android      androidConfig     `json:"android"`
	APNS         apnsConfig        `json:"apns"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type androidConfig struct {
	Priority     string              `json:"priority"`
	Notification androidNotification `json:"notification"`
}

type androidNotification struct {
	Sound       string `json:"sound"`
	ClickAction string `json:"click_action"`
}

type apnsConfig struct {
	Payload apnsPayload `json:"payload"`
}

type apnsPayload struct {
	APS aps `json:"aps"`
}

type aps struct {
	Sound string `json:"sound"`
	Badge int    `json:"badge"`
}

func newMessage(deviceToken, title, body string, data map[string]any) sendRequest {
	return sendRequest{
		Message: message{
			Token: deviceToken,
			Notification: notification{
				Title: title,
				Body:  body,
			},
			Data: ToWireStringMap(data),
			Android: androidConfig{
				Priority: androidPriority,
				Notification: androidNotification{
					Sound:       defaultSound,
					ClickAction: flutterClickAction,
				},
			},
			APNS: apnsConfig{
				Payload: apnsPayload{
					APS: aps{Sound: defaultSound, Badge: apnsBadge},
				},
			},
		},
	}
}

// ToWireStringMap converts notification data to the all-string map FCM
// requires. The result is never nil, so it encodes as {}.
func ToWireStringMap(data map[string]any) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = wireString(v)
	}
	return out
}

func wireString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}
