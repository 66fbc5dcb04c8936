package handler

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/qs3c/audiosep_server/internal/model"
	"github.com/qs3c/audiosep_server/internal/model/dto"
	"github.com/qs3c/audiosep_server/internal/pkg/response"
	"github.com/qs3c/audiosep_server/internal/service"
	"github.com/qs3c/audiosep_server/internal/testutil"
)

func TestAdminHandler_RequiresAdmin(t *testing.T) {
	app := setupApp(t, nil)
	router := app.engine()
	_, token := app.newUser(t)

	w := performRequest(router, "GET", "/admin/users", nil, withToken(token))
	assert.Equal(t, response.CodePermissionDenied, parseResponse(t, w).Code)

	w = performRequest(router, "GET", "/admin/users", nil)
	assert.Equal(t, response.CodeAuthFailed, parseResponse(t, w).Code)
}

func TestAdminHandler_Users(t *testing.T) {
	app := setupApp(t, nil)
	router := app.engine()
	admin, token := app.newUser(t, testutil.WithRole(model.RoleAdmin))

	w := performRequest(router, "POST", "/admin/users", dto.AdminCreateUserRequest{
		Email:    "managed@example.com",
		Password: "secret123",
	}, withToken(token))
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)

	var created dto.UserInfo
	decodeData(t, resp, &created)

	name := "Managed"
	w = performRequest(router, "PUT", fmt.Sprintf("/admin/users/%d", created.ID), dto.AdminUpdateUserRequest{DisplayName: &name}, withToken(token))
	resp = parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	decodeData(t, resp, &created)
	assert.Equal(t, "Managed", created.DisplayName)

	w = performRequest(router, "GET", "/admin/users?page=1&page_size=10", nil, withToken(token))
	resp = parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	var page response.PageData
	decodeData(t, resp, &page)
	assert.Equal(t, int64(2), page.Total)

	w = performRequest(router, "DELETE", fmt.Sprintf("/admin/users/%d", admin.ID), nil, withToken(token))
	assert.Equal(t, response.CodeParamError, parseResponse(t, w).Code)

	w = performRequest(router, "DELETE", fmt.Sprintf("/admin/users/%d", created.ID), nil, withToken(token))
	assert.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

	w = performRequest(router, "DELETE", fmt.Sprintf("/admin/users/%d", created.ID), nil, withToken(token))
	assert.Equal(t, response.CodeResourceNotFound, parseResponse(t, w).Code)
}

func TestAdminHandler_GuestsAndJobs(t *testing.T) {
	app := setupApp(t, nil)
	router := app.engine()
	owner, _ := app.newUser(t)
	_, token := app.newUser(t, testutil.WithRole(model.RoleAdmin))

	guest := testutil.TestGuest(t, app.db)
	job := testutil.TestJob(t, app.db, owner.ID, model.JobStatusDone)

	w := performRequest(router, "GET", "/admin/guests", nil, withToken(token))
	var page response.PageData
	decodeData(t, parseResponse(t, w), &page)
	assert.Equal(t, int64(1), page.Total)

	w = performRequest(router, "DELETE", fmt.Sprintf("/admin/guests/%d", guest.ID), nil, withToken(token))
	assert.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

	w = performRequest(router, "GET", "/admin/jobs", nil, withToken(token))
	decodeData(t, parseResponse(t, w), &page)
	assert.Equal(t, int64(1), page.Total)

	w = performRequest(router, "DELETE", fmt.Sprintf("/admin/jobs/%d", job.ID), nil, withToken(token))
	assert.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

	w = performRequest(router, "DELETE", fmt.Sprintf("/admin/jobs/%d", job.ID), nil, withToken(token))
	assert.Equal(t, response.CodeResourceNotFound, parseResponse(t, w).Code)
}

func TestAdminHandler_Plans(t *testing.T) {
	app := setupApp(t, nil)
	router := app.engine()
	_, token := app.newUser(t, testutil.WithRole(model.RoleAdmin))

	w := performRequest(router, "POST", "/admin/plans", dto.PlanRequest{Name: "Platinum", DailyLimit: 20, Price: 49}, withToken(token))
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)

	var plan dto.PlanInfo
	decodeData(t, resp, &plan)
	assert.Equal(t, "EUR", plan.Currency)

	w = performRequest(router, "POST", "/admin/plans", dto.PlanRequest{Name: "Platinum", DailyLimit: 1}, withToken(token))
	assert.Equal(t, response.CodeDuplicateAction, parseResponse(t, w).Code)

	w = performRequest(router, "PUT", fmt.Sprintf("/admin/plans/%d", plan.ID), dto.PlanRequest{Name: "Platinum", DailyLimit: 25, Price: 59}, withToken(token))
	resp = parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	decodeData(t, resp, &plan)
	assert.Equal(t, 25, plan.DailyLimit)

	standard, err := app.plans.Default()
	require.NoError(t, err)
	w = performRequest(router, "DELETE", fmt.Sprintf("/admin/plans/%d", standard.ID), nil, withToken(token))
	assert.Equal(t, response.CodeParamError, parseResponse(t, w).Code)

	w = performRequest(router, "DELETE", fmt.Sprintf("/admin/plans/%d", plan.ID), nil, withToken(token))
	assert.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

	w = performRequest(router, "GET", "/admin/plans", nil, withToken(token))
	var plans []dto.PlanInfo
	decodeData(t, parseResponse(t, w), &plans)
	assert.Len(t, plans, 3)
}

func TestAdminHandler_SQL(t *testing.T) {
	app := setupApp(t, nil)
	router := app.engine()
	_, token := app.newUser(t, testutil.WithRole(model.RoleAdmin))

	w := performRequest(router, "POST", "/admin/sql", dto.SQLQueryRequest{Query: "SELECT COUNT(*) AS n FROM plans"}, withToken(token))
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)

	var result dto.SQLQueryResult
	decodeData(t, resp, &result)
	assert.Equal(t, []string{"n"}, result.Columns)
	require.Len(t, result.Rows, 1)
	assert.EqualValues(t, 3, result.Rows[0]["n"])

	w = performRequest(router, "POST", "/admin/sql", dto.SQLQueryRequest{Query: "DELETE FROM plans"}, withToken(token))
	assert.Equal(t, response.CodeParamError, parseResponse(t, w).Code)
}

func TestAdminHandler_ExportPayments(t *testing.T) {
	app := setupApp(t, nil)
	router := app.engine()
	user, _ := app.newUser(t)
	_, token := app.newUser(t, testutil.WithRole(model.RoleAdmin))

	silver, err := app.plans.GetByName("Silver")
	require.NoError(t, err)
	_, err = app.billing.Checkout(user.ID, &dto.CheckoutRequest{PlanID: silver.ID})
	require.NoError(t, err)

	w := performRequest(router, "GET", "/admin/payments/export", nil, withToken(token))
	assert.Equal(t, service.XLSXContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Payments")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Silver", rows[1][2])
}
