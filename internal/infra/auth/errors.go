package auth

import "errors"

var errInvalidToken = errors.New("invalid adapter token")
