package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/service-desk/pkg/errorutil"
)

func validCreateRequest() CreateTicketRequest {
	return CreateTicketRequest{
		CorrelationRef: "thread-42",
		TicketType:     "Prorrogação",
		ContractType:   "Long Stay",
		TenantName:     "Acme Corp",
		Occupants:      "Jordan; Sam",
		PropertyID:     "JFL125",
		UnitLabel:      "1204 / 88m2",
		MoveInDate:     "2024-06-01",
		MoveOutDate:    "2024-12-01",
		RentValue:      "R$ 4.500,00",
		Requester:      "U001",
	}
}

func TestCreateTicketRequest_ToInput(t *testing.T) {
	t.Parallel()

	input, err := validCreateRequest().ToInput()
	require.NoError(t, err)

	assert.Equal(t, "thread-42", input.CorrelationRef)
	assert.Equal(t, "4500", input.RentValue.String())
	require.NotNil(t, input.MoveInDate)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *input.MoveInDate)
	require.NotNil(t, input.MoveOutDate)
}

func TestCreateTicketRequest_OptionalFieldsMayBeEmpty(t *testing.T) {
	t.Parallel()

	req := validCreateRequest()
	req.MoveInDate = ""
	req.MoveOutDate = ""
	req.RentValue = ""

	input, err := req.ToInput()
	require.NoError(t, err)
	assert.Nil(t, input.MoveInDate)
	assert.Nil(t, input.MoveOutDate)
	assert.True(t, input.RentValue.IsZero())
}

func TestCreateTicketRequest_InvalidValuesRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*CreateTicketRequest)
	}{
		{name: "bad date", mutate: func(r *CreateTicketRequest) { r.MoveInDate = "01/06/2024" }},
		{name: "bad currency", mutate: func(r *CreateTicketRequest) { r.RentValue = "lots" }},
		{name: "negative currency", mutate: func(r *CreateTicketRequest) { r.RentValue = "-1,00" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := validCreateRequest()
			tt.mutate(&req)
			_, err := req.ToInput()
			require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
		})
	}
}

func TestEditTicketRequest_ToEdit(t *testing.T) {
	t.Parallel()

	rent := "R$ 5.200,00"
	tenant := "Beta LLC"
	req := EditTicketRequest{Actor: "U001", TenantName: &tenant, RentValue: &rent}

	edit, err := req.ToEdit()
	require.NoError(t, err)
	require.NotNil(t, edit.RentValue)
	assert.Equal(t, "5200", edit.RentValue.String())
	require.NotNil(t, edit.TenantName)
	assert.Nil(t, edit.ContractType)

	bad := "five thousand"
	_, err = EditTicketRequest{Actor: "U001", RentValue: &bad}.ToEdit()
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}
