package bff

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const defaultLimit = 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type listQuery struct {
	Offset int `validate:"gte=0"`
	Limit  int `validate:"gte=1,lte=100"`
}

func parseListQuery(values url.Values) (listQuery, error) {
	q := listQuery{Offset: 0, Limit: defaultLimit}

	if raw := values.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return listQuery{}, errors.New("offset must be an integer")
		}
		q.Offset = n
	}
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return listQuery{}, errors.New("limit must be an integer")
		}
		q.Limit = n
	}

	if err := validate.Struct(q); err != nil {
		return listQuery{}, describe(err)
	}
	return q, nil
}

// describe turns validator field errors into one short message.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be >= %s", field, fe.Param()))
		case "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be <= %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
