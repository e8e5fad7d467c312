package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/mocks"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/models"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/repositories"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name             string
		readCount        int
		participantCount int
		want             models.DeliveryStatus
	}{
		{"only sender has read", 1, 2, models.StatusSent},
		{"everyone in a direct conversation", 2, 2, models.StatusSeen},
		{"some of a group", 2, 3, models.StatusDelivered},
		{"whole group", 3, 3, models.StatusSeen},
		{"more reads than participants", 4, 3, models.StatusSeen},
		{"empty read set", 0, 2, models.StatusSent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.readCount, tt.participantCount))
		})
	}
}

func TestStatusOfNeverMovesBackward(t *testing.T) {
	// For a fixed participant count the status is monotonic in the size of
	// the read-by set.
	rank := map[models.DeliveryStatus]int{
		models.StatusSent:      0,
		models.StatusDelivered: 1,
		models.StatusSeen:      2,
	}
	for participants := 2; participants <= 6; participants++ {
		prev := StatusOf(1, participants)
		for reads := 2; reads <= participants+1; reads++ {
			current := StatusOf(reads, participants)
			assert.GreaterOrEqual(t, rank[current], rank[prev])
			prev = current
		}
	}
}

func TestMarkReadReturnsNewlyMarkedIDs(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	reconciler := NewReconciler(new(mocks.ConversationRepositoryMock), messageRepo)

	messageRepo.On("MarkRead", mock.Anything, 5, 2).Return([]int{11, 12, 13}, nil).Once()

	ids, err := reconciler.MarkRead(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{11, 12, 13}, ids)
	messageRepo.AssertExpectations(t)
}

func TestMarkReadSecondCallIsEmpty(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	reconciler := NewReconciler(new(mocks.ConversationRepositoryMock), messageRepo)

	messageRepo.On("MarkRead", mock.Anything, 5, 2).Return([]int{11}, nil).Once()
	messageRepo.On("MarkRead", mock.Anything, 5, 2).Return([]int(nil), nil).Once()

	first, err := reconciler.MarkRead(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{11}, first)

	second, err := reconciler.MarkRead(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Empty(t, second)
	messageRepo.AssertExpectations(t)
}

func TestMarkReadMissingConversationIsNoOp(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	reconciler := NewReconciler(new(mocks.ConversationRepositoryMock), messageRepo)

	messageRepo.On("MarkRead", mock.Anything, 99, 2).Return([]int(nil), repositories.ErrConversationNotFound).Once()

	ids, err := reconciler.MarkRead(context.Background(), 99, 2)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAnnotateDerivesStatusPerMessage(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	reconciler := NewReconciler(conversationRepo, new(mocks.MessageRepositoryMock))

	conversationRepo.On("Participants", mock.Anything, 7).Return([]int{1, 2, 3}, nil).Once()

	msgs := []models.Message{
		{ID: 1, ReadBy: []int{1}},
		{ID: 2, ReadBy: []int{1, 2}},
		{ID: 3, ReadBy: []int{1, 2, 3}},
	}
	require.NoError(t, reconciler.Annotate(context.Background(), 7, msgs))

	assert.Equal(t, models.StatusSent, msgs[0].Status)
	assert.Equal(t, models.StatusDelivered, msgs[1].Status)
	assert.Equal(t, models.StatusSeen, msgs[2].Status)
	conversationRepo.AssertExpectations(t)
}

func TestAnnotateEmptySliceSkipsLookup(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	reconciler := NewReconciler(conversationRepo, new(mocks.MessageRepositoryMock))

	require.NoError(t, reconciler.Annotate(context.Background(), 7, nil))
	conversationRepo.AssertNotCalled(t, "Participants", mock.Anything, mock.Anything)
}
