package twikey

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dverhagen/twikeysync/internal/common"
)

func TestDocumentCreate_SendsCustomerForm(t *testing.T) {
	var logins int32
	h := loginHandler(t, &logins, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/invite", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "42", r.PostForm.Get("customerNumber"))
		require.Equal(t, "Ada", r.PostForm.Get("firstname"))
		require.Equal(t, "Lovelace", r.PostForm.Get("lastname"))
		require.Equal(t, "tmpl-1", r.PostForm.Get("ct"))
		w.Write([]byte(`{"mndtId":"M17","url":"https://sign.example.test/M17","key":"k"}`))
	})
	c, _ := newTestClient(t, h)

	inv, err := c.Document.Create(context.Background(), &InviteRequest{
		Customer: Customer{Number: 42, Name: "Ada Lovelace", Email: "ada@example.test"},
		Template: "tmpl-1",
	})
	require.NoError(t, err)
	require.Equal(t, "M17", inv.MndtID)
	require.Equal(t, "https://sign.example.test/M17", inv.URL)
}

func TestDocumentSign_SendsTransactionFields(t *testing.T) {
	var logins int32
	h := loginHandler(t, &logins, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sign", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "TX-1", r.PostForm.Get("transactionMessage"))
		require.Equal(t, "12.50", r.PostForm.Get("transactionAmount"))
		w.Write([]byte(`{"MndtId":"M18","url":"https://sign.example.test/M18"}`))
	})
	c, _ := newTestClient(t, h)

	res, err := c.Document.Sign(context.Background(), &InviteRequest{
		Customer:           Customer{Number: 7, Name: "Ada"},
		TransactionMessage: "TX-1",
		TransactionAmount:  12.5,
	})
	require.NoError(t, err)
	require.Equal(t, "M18", res.MndtID)
}

func TestDocumentCancel_RequiresReason(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())

	err := c.Document.Cancel(context.Background(), "M1", "")
	require.ErrorIs(t, err, common.ErrValidation)

	err = c.Document.Cancel(context.Background(), "", "customer-request")
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestDocumentCancel_SendsDeleteWithQuery(t *testing.T) {
	var logins int32
	h := loginHandler(t, &logins, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/mandate", r.URL.Path)
		require.Equal(t, "M1", r.URL.Query().Get("mndtId"))
		require.Equal(t, "customer-request", r.URL.Query().Get("rsn"))
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := newTestClient(t, h)

	require.NoError(t, c.Document.Cancel(context.Background(), "M1", "customer-request"))
}

func TestDocumentFeedPage_ClassifiesAndCarriesCursor(t *testing.T) {
	var logins int32
	h := loginHandler(t, &logins, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/mandate", r.URL.Path)
		require.Equal(t, "CORE,B2B,CREDITCARD", r.Header.Get(headerFeedTypes))
		require.Equal(t, "cur-41", r.Header.Get(headerFeedResume))
		w.Header().Set(headerFeedCursor, "cur-42")
		w.Write([]byte(`{"Messages":[
			{"Mndt":{"MndtId":"M1","DbtrAcct":"BE68539007547034"}},
			{"OrgnlMndtId":"M1","AmdmntRsn":"address-change","Mndt":{"MndtId":"M1"}},
			{"OrgnlMndtId":"M1","CxlRsn":"customer-request"}
		]}`))
	})
	c, _ := newTestClient(t, h)

	page, err := c.Document.FeedPage(context.Background(), "cur-41")
	require.NoError(t, err)
	require.Equal(t, "cur-42", page.Cursor)
	require.Len(t, page.Events, 3)

	require.Equal(t, EventCreated, page.Events[0].Kind)
	require.Equal(t, "M1", page.Events[0].OriginalID)

	require.Equal(t, EventAmended, page.Events[1].Kind)
	require.Equal(t, "M1", page.Events[1].OriginalID)
	require.Equal(t, "address-change", page.Events[1].Reason)

	require.Equal(t, EventCanceled, page.Events[2].Kind)
	require.Equal(t, "customer-request", page.Events[2].Reason)

	var doc Mandate
	require.NoError(t, json.Unmarshal(page.Events[0].Document, &doc))
	require.Equal(t, "BE68539007547034", doc.DbtrAcct)
}

func TestMandate_SupplementaryValue(t *testing.T) {
	m := Mandate{SplmtryData: []KeyValue{{Key: "CustomerNumber", Value: "42"}}}
	require.Equal(t, "42", m.SupplementaryValue("CustomerNumber"))
	require.Equal(t, "", m.SupplementaryValue("missing"))
}

func TestDocumentSignURL_UsesMerchantAndAppHost(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	require.Equal(t, "https://app.example.test/acme/key-1", c.Document.SignURL("key-1"))
}
