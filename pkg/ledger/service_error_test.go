package ledger

import (
	"context"
	"errors"
	"testing"
)

const errorMismatchMessage = "expected %v, got %v"

var errStoreFailure = errors.New("store error")

// failingStore wraps fakeStore with injectable failures.
type failingStore struct {
	*fakeStore
	createAccountError     error
	getAccountError        error
	saveBalanceError       error
	insertTransactionError error
	listTransactionsError  error
}

func newFailingStore(t *testing.T) *failingStore {
	t.Helper()
	return &failingStore{fakeStore: newFakeStore()}
}

func (store *failingStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *failingStore) CreateAccount(ctx context.Context, key AccountKey) error {
	if store.createAccountError != nil {
		return store.createAccountError
	}
	return store.fakeStore.CreateAccount(ctx, key)
}

func (store *failingStore) GetAccount(ctx context.Context, key AccountKey) (AccountRecord, error) {
	if store.getAccountError != nil {
		return AccountRecord{}, store.getAccountError
	}
	return store.fakeStore.GetAccount(ctx, key)
}

func (store *failingStore) SaveBalance(ctx context.Context, key AccountKey, balance AmountCents) error {
	if store.saveBalanceError != nil {
		return store.saveBalanceError
	}
	return store.fakeStore.SaveBalance(ctx, key, balance)
}

func (store *failingStore) InsertTransaction(ctx context.Context, key AccountKey, transaction Transaction) error {
	if store.insertTransactionError != nil {
		return store.insertTransactionError
	}
	return store.fakeStore.InsertTransaction(ctx, key, transaction)
}

func (store *failingStore) ListTransactions(ctx context.Context, key AccountKey, limit int) ([]Transaction, error) {
	if store.listTransactionsError != nil {
		return nil, store.listTransactionsError
	}
	return store.fakeStore.ListTransactions(ctx, key, limit)
}

func TestCreditReturnsStoreErrors(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name      string
		configure func(store *failingStore)
	}{
		{
			name: "account lookup error",
			configure: func(store *failingStore) {
				store.getAccountError = errStoreFailure
			},
		},
		{
			name: "save balance error",
			configure: func(store *failingStore) {
				store.saveBalanceError = errStoreFailure
			},
		},
		{
			name: "insert transaction error",
			configure: func(store *failingStore) {
				store.insertTransactionError = errStoreFailure
			},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newFailingStore(test)
			service := newTestService(test, store)
			key := mustAccountKey(test)
			if err := service.Initialize(context.Background(), key); err != nil {
				test.Fatalf("initialize: %v", err)
			}
			testCase.configure(store)

			_, err := service.Credit(context.Background(), key, 10, mustTransactionType(test), "load", nil)
			if !errors.Is(err, errStoreFailure) {
				test.Fatalf(errorMismatchMessage, errStoreFailure, err)
			}
		})
	}
}

func TestInitializeReturnsStoreErrors(test *testing.T) {
	test.Parallel()
	store := newFailingStore(test)
	store.createAccountError = errStoreFailure
	service := newTestService(test, store)

	err := service.Initialize(context.Background(), mustAccountKey(test))
	if !errors.Is(err, errStoreFailure) {
		test.Fatalf(errorMismatchMessage, errStoreFailure, err)
	}
}

func TestGetTransactionsReturnsStoreErrors(test *testing.T) {
	test.Parallel()
	store := newFailingStore(test)
	service := newTestService(test, store)
	key := mustAccountKey(test)
	if err := service.Initialize(context.Background(), key); err != nil {
		test.Fatalf("initialize: %v", err)
	}
	store.listTransactionsError = errStoreFailure

	_, err := service.GetTransactions(context.Background(), key, 0)
	if !errors.Is(err, errStoreFailure) {
		test.Fatalf(errorMismatchMessage, errStoreFailure, err)
	}
}

func TestFailedTransactionLeavesNoPartialState(test *testing.T) {
	test.Parallel()
	store := newFailingStore(test)
	service := newTestService(test, store)
	key := mustAccountKey(test)
	if err := service.Initialize(context.Background(), key); err != nil {
		test.Fatalf("initialize: %v", err)
	}
	store.insertTransactionError = errStoreFailure

	if _, err := service.Credit(context.Background(), key, 10, mustTransactionType(test), "load", nil); err == nil {
		test.Fatalf("expected insert failure")
	}
	store.insertTransactionError = nil
	transactions, err := service.GetTransactions(context.Background(), key, 0)
	if err != nil {
		test.Fatalf("transactions: %v", err)
	}
	if len(transactions) != 0 {
		test.Fatalf("failed mutation must not record a transaction: %+v", transactions)
	}
}
