package template

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// fn is one entry of the closed function catalogue (spec §6.5). args are
// already-evaluated strings; fn returns the resolved string or an error.
type fn func(s *Scope, args []string) (string, error)

var catalogue = map[string]fn{
	"header":    fnHeader,
	"query":     fnQuery,
	"cookie":    fnCookie,
	"param":     fnParam,
	"request":   fnRequest,
	"env":       fnEnv,
	"uuid":      fnUUID,
	"timestamp": fnTimestamp,
	"or":        fnOr,
	"eq":        fnEq,
	"neq":       fnNeq,
	"concat":    fnConcat,
	"upper":     fnUpper,
	"lower":     fnLower,
	"len":       fnLen,
	"if_cond":   fnIfCond,
}

func withDefault(args []string, idx int) string {
	if len(args) > idx {
		return args[idx]
	}
	return ""
}

func fnHeader(s *Scope, args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("header: requires a name argument")
	}
	return s.header(args[0]), nil
}

func fnQuery(s *Scope, args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("query: requires a name argument")
	}
	if v, ok := s.query(args[0]); ok {
		return v, nil
	}
	return withDefault(args, 1), nil
}

func fnCookie(s *Scope, args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("cookie: requires a name argument")
	}
	if v, ok := s.cookie(args[0]); ok {
		return v, nil
	}
	return withDefault(args, 1), nil
}

func fnParam(s *Scope, args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("param: requires a name argument")
	}
	if v, ok := s.param(args[0]); ok {
		return v, nil
	}
	return withDefault(args, 1), nil
}

func fnRequest(s *Scope, args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("request: requires a field argument")
	}
	v, ok := s.request(args[0])
	if !ok {
		return "", fmt.Errorf("request: unknown field %q", args[0])
	}
	return v, nil
}

func fnEnv(_ *Scope, args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("env: requires a variable name")
	}
	return os.Getenv(args[0]), nil
}

func fnUUID(_ *Scope, args []string) (string, error) {
	version := withDefault(args, 0)
	switch version {
	case "v4", "":
		return uuid.New().String(), nil
	case "v7":
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("uuid: %w", err)
		}
		return id.String(), nil
	default:
		return "", fmt.Errorf("uuid: unknown version %q", version)
	}
}

func fnTimestamp(_ *Scope, _ []string) (string, error) {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"), nil
}

func fnOr(_ *Scope, args []string) (string, error) {
	for _, a := range args {
		if a != "" {
			return a, nil
		}
	}
	return "", nil
}

func fnEq(_ *Scope, args []string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("eq: requires two arguments")
	}
	matched := args[0] == args[1]
	if len(args) >= 3 {
		if matched {
			return args[2], nil
		}
		return "", nil
	}
	return strconv.FormatBool(matched), nil
}

func fnNeq(_ *Scope, args []string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("neq: requires two arguments")
	}
	matched := args[0] != args[1]
	if len(args) >= 3 {
		if matched {
			return args[2], nil
		}
		return "", nil
	}
	return strconv.FormatBool(matched), nil
}

func fnConcat(_ *Scope, args []string) (string, error) {
	return strings.Join(args, ""), nil
}

func fnUpper(_ *Scope, args []string) (string, error) {
	return strings.ToUpper(withDefault(args, 0)), nil
}

func fnLower(_ *Scope, args []string) (string, error) {
	return strings.ToLower(withDefault(args, 0)), nil
}

func fnLen(_ *Scope, args []string) (string, error) {
	return strconv.Itoa(len(withDefault(args, 0))), nil
}

func fnIfCond(_ *Scope, args []string) (string, error) {
	if len(args) < 3 {
		return "", fmt.Errorf("if_cond: requires three arguments")
	}
	if truthy(args[0]) {
		return args[1], nil
	}
	return args[2], nil
}

func truthy(v string) bool {
	return v != "" && v != "false"
}
