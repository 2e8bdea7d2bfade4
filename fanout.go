package fedds

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// fanout runs cmd on every federation member in ascending key order,
// switching conn from member to member by probing the upper boundary of
// the current one. The first error ends the walk and is returned as is.
func (db *Database) fanout(ctx context.Context, cmd Command, conn Conn) (int64, error) {
	cursor, more := int64(0), true
	for more {
		if err := db.applyContext(ctx, conn, FederationMember, cursor, false); err != nil {
			return 0, err
		}
		if _, err := db.execNonQuery(ctx, cmd, conn); err != nil {
			db.log.Debug().Int64("key", cursor).Err(err).Msg("fan-out stopped")
			return 0, err
		}
		db.metrics.IncFanoutMember(db.target.Name)
		db.log.Debug().Int64("key", cursor).Msg("fan-out member done")

		next, ok, err := db.discoverNext(ctx, conn)
		if err != nil {
			return 0, err
		}
		if ok && next <= cursor {
			return 0, &Error{
				Kind:      ErrDiscovery,
				Statement: discoveryStatement,
				Err:       fmt.Errorf("member boundary %d does not advance past %d", next, cursor),
			}
		}
		cursor, more = next, ok
	}
	return 0, nil
}

// discoverNext reads the upper boundary of the member conn is in. ok is
// false for the last member.
func (db *Database) discoverNext(ctx context.Context, conn Conn) (next int64, ok bool, err error) {
	v, err := db.execScalar(ctx, NewCommand(discoveryStatement), conn)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.Kind = ErrDiscovery
		}
		return 0, false, err
	}
	if v == nil {
		return 0, false, nil
	}
	next, err = toInt64(v)
	if err != nil {
		return 0, false, &Error{Kind: ErrDiscovery, Statement: discoveryStatement, Err: err}
	}
	return next, true, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > 1<<63-1 {
			return 0, fmt.Errorf("member boundary %d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, fmt.Errorf("member boundary %v is not an int64", n)
		}
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("member boundary has unexpected type %T", v)
	}
}
