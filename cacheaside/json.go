package cacheaside

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// GetOrComputeJSON é a versão tipada de Runner.GetOrCompute: o valor é gravado como JSON.
//
// Um valor cacheado que não decodifica para T conta como miss e é recalculado.
func GetOrComputeJSON[T any](
	ctx context.Context, r Runner, key string, ttl time.Duration, compute func(ctx context.Context) (T, error),
) (T, bool, error) {
	var zero T
	if compute == nil {
		return zero, false, fmt.Errorf("%w: nil compute func", ErrInvalidArgument)
	}

	encode := func(ctx context.Context) (string, error) {
		v, err := compute(ctx)
		if err != nil {
			return "", err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	decodes := func(s string) bool {
		var v T
		return json.Unmarshal([]byte(s), &v) == nil
	}

	res, err := r.getOrCompute(ctx, key, ttl, encode, decodes)
	if err != nil {
		return zero, false, err
	}
	var out T
	if err := json.Unmarshal([]byte(res.Value), &out); err != nil {
		return zero, false, err
	}
	return out, res.Cached, nil
}
