package errx

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to the unified Error type with appropriate status codes.
func WrapRedis(err error) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		e := New(err, http.StatusNotFound, RedisNotFoundMessage)
		e.Kind = KindPersistence
		return e
	}

	e := New(err, http.StatusBadGateway, RedisErrorMessage)
	e.Kind = KindPersistence
	return e
}
