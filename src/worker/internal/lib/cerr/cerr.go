package cerr

import (
	"fmt"
	"sort"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
)

type F = map[string]any

// Context accumulates fields that get attached to the next error built from it
type Context struct {
	fields F
}

type Wrapper struct {
	context Context
	err     error
}

func Field(key string, value any) Context {
	return Context{}.Field(key, value)
}

func Fields(fields F) Context {
	return Context{}.Fields(fields)
}

func Wrap(err error) Wrapper {
	return Context{}.Wrap(err)
}

func Error(msg string) error {
	return Context{}.Error(msg)
}

func (c Context) Field(key string, value any) Context {
	return c.Fields(F{key: value})
}

func (c Context) Fields(fields F) Context {
	merged := F{}
	for k, v := range c.fields {
		merged[k] = v
	}

	for k, v := range fields {
		merged[k] = v
	}

	return Context{fields: merged}
}

func (c Context) Wrap(err error) Wrapper {
	return Wrapper{
		context: c,
		err:     err,
	}
}

func (c Context) Error(msg string) error {
	return c.attach(errors.NewWithDepth(1, msg))
}

func (w Wrapper) Error(msg string) error {
	if w.err == nil {
		return w.context.attach(errors.NewWithDepth(1, msg))
	}

	return w.context.attach(errors.WrapWithDepth(1, w.err, msg))
}

func (c Context) attach(err error) error {
	keys := make([]string, 0, len(c.fields))
	for k := range c.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		err = errors.WithDetail(err, fmt.Sprintf("%s: %+v", k, c.fields[k]))
	}

	return err
}

func Log(err error) {
	if err == nil {
		return
	}

	log.WithError(err).
		WithField("details", errors.GetAllDetails(err)).
		Error(err.Error())
}
