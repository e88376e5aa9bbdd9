package catalog

import (
	"fmt"

	"github.com/dwsmith1983/faultline/pkg/types"
)

func genNameError(_ Site, rng Rand) (string, []types.Frame) {
	name := pick(rng, []string{"auth_token", "session_ctx", "user_record", "retry_budget", "cfg"})
	return fmt.Sprintf("name '%s' is not defined", name), nil
}

func genKeyError(_ Site, rng Rand) (string, []types.Frame) {
	key := pick(rng, []string{"settings", "preferences", "billing_address", "last_login", "tenant_id"})
	return fmt.Sprintf("'%s'", key), nil
}

func genAttributeError(_ Site, rng Rand) (string, []types.Frame) {
	attr := pick(rng, []string{"is_valid", "strip", "items", "get", "to_dict"})
	return fmt.Sprintf("'NoneType' object has no attribute '%s'", attr), nil
}

func genZeroDivision(_ Site, rng Rand) (string, []types.Frame) {
	msg := pick(rng, []string{"division by zero", "float division by zero", "integer division or modulo by zero"})
	return msg, nil
}

func genTypeError(_ Site, rng Rand) (string, []types.Frame) {
	pairs := [][2]string{{"str", "float"}, {"str", "int"}, {"int", "NoneType"}, {"list", "str"}}
	p := pairs[rng.IntN(len(pairs))]
	return fmt.Sprintf("can only concatenate %s (not \"%s\") to %s", p[0], p[1], p[0]), nil
}

func genIndexError(_ Site, rng Rand) (string, []types.Frame) {
	kind := pick(rng, []string{"list", "tuple", "string"})
	return fmt.Sprintf("%s index out of range", kind), nil
}

func genFileNotFound(site Site, rng Rand) (string, []types.Frame) {
	dir := pick(rng, []string{"/data/incoming", "/var/lib/batches", "/mnt/shared/exports", "/tmp/staging"})
	path := fmt.Sprintf("%s/batch_%04d.csv", dir, rng.IntN(10000))
	return fmt.Sprintf("[Errno 2] No such file or directory: '%s'", path), nil
}

func genValueError(_ Site, rng Rand) (string, []types.Frame) {
	lit := pick(rng, []string{"abc", "12.3", "N/A", "", "0x1F"})
	return fmt.Sprintf("invalid literal for int() with base 10: '%s'", lit), nil
}

func genMemoryError(_ Site, rng Rand) (string, []types.Frame) {
	mb := 512 * (1 + rng.IntN(16))
	return fmt.Sprintf("Simulated memory error during data aggregation (requested %d MiB)", mb), []types.Frame{{
		File:     "lib/aggregation.py",
		Line:     20 + rng.IntN(80),
		Function: "_materialize",
		Code:     "buffer = bytearray(total_size)",
	}}
}

func genImportError(_ Site, rng Rand) (string, []types.Frame) {
	mod := pick(rng, []string{"crypto_utils", "jwt_extensions", "legacy_auth", "fastjson"})
	return fmt.Sprintf("No module named '%s'", mod), nil
}

func genRecursionError(site Site, rng Rand) (string, []types.Frame) {
	depth := 3 + rng.IntN(5)
	base := 120 + rng.IntN(60)
	frames := make([]types.Frame, 0, depth)
	for i := 0; i < depth; i++ {
		frames = append(frames, types.Frame{
			File:     ServiceFile(site.Service),
			Line:     base,
			Function: "_check_role_hierarchy",
			Code:     "return self._check_role_hierarchy(role, permission, depth + 1)",
		})
	}
	return "maximum recursion depth exceeded in comparison", frames
}

func genConnectionError(_ Site, rng Rand) (string, []types.Frame) {
	host := pick(rng, []string{"session-store.internal", "redis-primary.internal", "auth-db.internal", "token-cache.internal"})
	port := pick(rng, []string{"6379", "5432", "8443", "11211"})
	msg := fmt.Sprintf("HTTPConnectionPool(host='%s', port=%s): Max retries exceeded (Connection refused)", host, port)
	return msg, []types.Frame{{
		File:     "lib/session_client.py",
		Line:     30 + rng.IntN(70),
		Function: "refresh",
		Code:     "raise ConnectionError(self._format_failure(host, port))",
	}}
}
