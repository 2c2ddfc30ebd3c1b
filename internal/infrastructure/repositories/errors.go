package repositories

import "errors"

var errRepositoriesClosed = errors.New("repositories closed")
