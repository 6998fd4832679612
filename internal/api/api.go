// Package api is the contract between the LinkVault gRPC server and its
// clients. On the wire every message is a google.protobuf.Struct; the typed
// request and response messages in messages.go are converted with Encode and
// Decode. New and the field accessors work on raw messages.
package api

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "linkvault.v1.LinkVault"

// Method names. FullMethod gives the path used on the wire.
const (
	MethodPing         = "Ping"
	MethodRegister     = "Register"
	MethodLogin        = "Login"
	MethodRefreshToken = "RefreshToken"
	MethodListObjects  = "ListObjects"
	MethodDeleteObject = "DeleteObject"
	MethodIssueLink    = "IssueLink"
	MethodRevokeLink   = "RevokeLink"
	MethodListLinks    = "ListLinks"
	MethodIngest       = "Ingest"
	MethodGetQuota     = "GetQuota"
	MethodListPlans    = "ListPlans"
	MethodOpenOrder    = "OpenOrder"
	MethodSettleOrder  = "SettleOrder"
	MethodListPayments = "ListPayments"
)

// AccessTokenKey is the metadata key carrying the JWT.
const AccessTokenKey = "access_token"

func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// M is shorthand for building messages.
type M = map[string]any

// New builds a message from plain Go values. Integers and times are
// converted to numbers and RFC 3339 strings.
func New(fields M) (*structpb.Struct, error) {
	normalized := make(map[string]any, len(fields))
	for k, v := range fields {
		normalized[k] = normalize(v)
	}
	s, err := structpb.NewStruct(normalized)
	if err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}
	return s, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case []M:
		out := make([]any, len(x))
		for i, m := range x {
			inner := make(map[string]any, len(m))
			for k, v := range m {
				inner[k] = normalize(v)
			}
			out[i] = inner
		}
		return out
	case M:
		inner := make(map[string]any, len(x))
		for k, v := range x {
			inner[k] = normalize(v)
		}
		return inner
	default:
		return v
	}
}

func String(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func Int(s *structpb.Struct, key string) int64 {
	return int64(s.GetFields()[key].GetNumberValue())
}

func Bool(s *structpb.Struct, key string) bool {
	return s.GetFields()[key].GetBoolValue()
}

// Time parses an RFC 3339 field; a missing or malformed value is zero.
func Time(s *structpb.Struct, key string) time.Time {
	t, _ := time.Parse(time.RFC3339, String(s, key))
	return t
}

func StructField(s *structpb.Struct, key string) *structpb.Struct {
	return s.GetFields()[key].GetStructValue()
}

// List returns the struct elements of a list field.
func List(s *structpb.Struct, key string) []*structpb.Struct {
	var out []*structpb.Struct
	for _, v := range s.GetFields()[key].GetListValue().GetValues() {
		if st := v.GetStructValue(); st != nil {
			out = append(out, st)
		}
	}
	return out
}
