package service

import "errors"

var ErrTaskNotFound = errors.New("task not found")
