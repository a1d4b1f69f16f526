package workflow

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorequest/chorequest/internal/database"
	"github.com/chorequest/chorequest/internal/model"
	"github.com/chorequest/chorequest/internal/notify"
	"github.com/chorequest/chorequest/internal/push"
	"github.com/chorequest/chorequest/internal/store"
	"github.com/chorequest/chorequest/internal/websocket"
)

type fixture struct {
	wf            *Workflow
	tasks         *store.TaskStore
	players       *store.PlayerStore
	archive       *store.ArchiveStore
	rewards       *store.RewardStore
	notifications *store.NotificationStore

	alice *model.Player
	bob   *model.Player
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.Default()
	tasks := store.NewTaskStore(db)
	archive := store.NewArchiveStore(db)
	players := store.NewPlayerStore(db)
	rewards := store.NewRewardStore(db)
	settings := store.NewSettingsStore(db)
	notifications := store.NewNotificationStore(db)
	pushStore := store.NewPushStore(db)

	hub := websocket.NewHub(logger)
	dispatcher := push.NewDispatcher(nil, pushStore, logger)
	bus := notify.NewBus(notifications, players, hub, dispatcher, logger)

	wf := New(Config{
		DB:         db,
		Tasks:      tasks,
		Archive:    archive,
		Players:    players,
		Rewards:    rewards,
		Settings:   settings,
		Bus:        bus,
		Hub:        hub,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	alice, err := players.Create("Alice")
	require.NoError(t, err)
	bob, err := players.Create("Bob")
	require.NoError(t, err)

	return &fixture{
		wf:            wf,
		tasks:         tasks,
		players:       players,
		archive:       archive,
		rewards:       rewards,
		notifications: notifications,
		alice:         alice,
		bob:           bob,
	}
}

func (f *fixture) createTask(t *testing.T, ownerID int64, difficulty, urgency int, dueDate *time.Time) *model.Task {
	t.Helper()
	task, err := f.tasks.Create("Wash dishes", difficulty, urgency, dueDate, ownerID, 0, "", "")
	require.NoError(t, err)
	return task
}

func tomorrow() *time.Time {
	d := time.Now().UTC().Add(24 * time.Hour)
	return &d
}

func TestSubmitAndApprove(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 3, 2, tomorrow())

	submitted, err := f.wf.Submit(task.ID, f.alice.ID, model.ApproverFor(f.bob.ID))
	require.NoError(t, err)
	assert.Equal(t, model.StatusSubmitted, submitted.Status)
	assert.Equal(t, model.ApproverPlayer, submitted.Approver.Kind)

	archived, err := f.wf.Approve(task.ID, f.bob.ID, 4, "nice work")
	require.NoError(t, err)
	assert.Equal(t, task.ID, archived.TaskID)
	assert.Equal(t, f.bob.ID, archived.ConfirmedBy)
	assert.Equal(t, 4, archived.Rating)
	assert.Equal(t, "nice work", archived.AnswerCommentary)
	// 10*3 + 5*2 + 20 early bonus
	assert.Equal(t, 60, archived.ExpAwarded)

	// Task is gone from the active store
	gone, err := f.tasks.GetByID(task.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// Owner received the EXP
	owner, err := f.players.GetByID(f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, owner.Exp)

	// Archive holds exactly one record
	records, err := f.archive.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, archived.ID, records[0].ID)
}

func TestSubmitOnlyByOwner(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 2, 0, nil)

	_, err := f.wf.Submit(task.ID, f.bob.ID, model.ApproverFor(f.bob.ID))
	var authErr AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestSubmitRequiresApprover(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 2, 0, nil)

	_, err := f.wf.Submit(task.ID, f.alice.ID, model.Approver{})
	var valErr ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestSubmitRejectsOwnerAsApprover(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 2, 0, nil)

	_, err := f.wf.Submit(task.ID, f.alice.ID, model.ApproverFor(f.alice.ID))
	var valErr ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestSubmitRejectsUnknownApprover(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 2, 0, nil)

	_, err := f.wf.Submit(task.ID, f.alice.ID, model.ApproverFor(999))
	var nfErr NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestResubmitFails(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 2, 0, nil)

	_, err := f.wf.Submit(task.ID, f.alice.ID, model.ApproverAnyoneValue())
	require.NoError(t, err)

	_, err = f.wf.Submit(task.ID, f.alice.ID, model.ApproverAnyoneValue())
	var preErr PreconditionError
	require.ErrorAs(t, err, &preErr)
}

func TestOwnerCannotApproveUnderAnyone(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 2, 0, nil)

	_, err := f.wf.Submit(task.ID, f.alice.ID, model.ApproverAnyoneValue())
	require.NoError(t, err)

	_, err = f.wf.Approve(task.ID, f.alice.ID, 5, "")
	var authErr AuthorizationError
	require.ErrorAs(t, err, &authErr)

	_, err = f.wf.Decline(task.ID, f.alice.ID)
	require.ErrorAs(t, err, &authErr)
}

func TestOnlyDesignatedApproverMayJudge(t *testing.T) {
	f := setup(t)
	charlie, err := f.players.Create("Charlie")
	require.NoError(t, err)

	task := f.createTask(t, f.alice.ID, 2, 0, nil)
	_, err = f.wf.Submit(task.ID, f.alice.ID, model.ApproverFor(f.bob.ID))
	require.NoError(t, err)

	_, err = f.wf.Approve(task.ID, charlie.ID, 5, "")
	var authErr AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestFirstWriterWins(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 2, 0, nil)

	_, err := f.wf.Submit(task.ID, f.alice.ID, model.ApproverFor(f.bob.ID))
	require.NoError(t, err)

	_, err = f.wf.Approve(task.ID, f.bob.ID, 3, "")
	require.NoError(t, err)

	// The losing approve and a late decline both fail the same way
	var preErr PreconditionError
	_, err = f.wf.Approve(task.ID, f.bob.ID, 3, "")
	require.ErrorAs(t, err, &preErr)
	_, err = f.wf.Decline(task.ID, f.bob.ID)
	require.ErrorAs(t, err, &preErr)

	// Owner was credited exactly once
	owner, err := f.players.GetByID(f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, owner.Exp) // 10*2 halved for urgency 0
}

func TestDeclineReturnsToOpen(t *testing.T) {
	f := setup(t)
	task, err := f.tasks.Create("Mow lawn", 2, 1, nil, f.alice.ID, 30, "did it, see photo", "")
	require.NoError(t, err)

	_, err = f.wf.Submit(task.ID, f.alice.ID, model.ApproverFor(f.bob.ID))
	require.NoError(t, err)

	declined, err := f.wf.Decline(task.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, declined.Status)
	assert.Equal(t, model.ApproverUnassigned, declined.Approver.Kind)
	assert.Empty(t, declined.Commentary)

	// No EXP and no archive entry
	owner, err := f.players.GetByID(f.alice.ID)
	require.NoError(t, err)
	assert.Zero(t, owner.Exp)
	records, err := f.archive.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSubmittedTaskCannotBeDeleted(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 2, 0, nil)

	_, err := f.wf.Submit(task.ID, f.alice.ID, model.ApproverAnyoneValue())
	require.NoError(t, err)

	err = f.wf.Delete(task.ID)
	var preErr PreconditionError
	require.ErrorAs(t, err, &preErr)

	// Still there, still submitted
	got, err := f.tasks.GetByID(task.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusSubmitted, got.Status)
}

func TestDeleteOpenTask(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 2, 0, nil)

	require.NoError(t, f.wf.Delete(task.ID))

	var nfErr NotFoundError
	require.ErrorAs(t, f.wf.Delete(task.ID), &nfErr)
}

func TestApproveRatingValidation(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 2, 0, nil)
	_, err := f.wf.Submit(task.ID, f.alice.ID, model.ApproverFor(f.bob.ID))
	require.NoError(t, err)

	var valErr ValidationError
	_, err = f.wf.Approve(task.ID, f.bob.ID, 0, "")
	require.ErrorAs(t, err, &valErr)
	_, err = f.wf.Approve(task.ID, f.bob.ID, 6, "")
	require.ErrorAs(t, err, &valErr)

	// Task untouched by the rejected attempts
	got, err := f.tasks.GetByID(task.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusSubmitted, got.Status)
}

func TestApproveCrossingOneLevel(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.players.SetExp(f.alice.ID, 90))

	// 10*3 + 5*2 + 20 early = 60, lifting 90 to 150: level 1 to 2
	task := f.createTask(t, f.alice.ID, 3, 2, tomorrow())
	_, err := f.wf.Submit(task.ID, f.alice.ID, model.ApproverFor(f.bob.ID))
	require.NoError(t, err)
	_, err = f.wf.Approve(task.ID, f.bob.ID, 5, "")
	require.NoError(t, err)

	owner, err := f.players.GetByID(f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 150, owner.Exp)
	assert.Equal(t, 2, owner.Level)

	all, err := f.notifications.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.NotificationLevelUp, all[0].Type)
	assert.Equal(t, f.alice.ID, all[0].PlayerID)
	require.NotNil(t, all[0].Level)
	assert.Equal(t, 2, *all[0].Level)
}

func TestApproveWithoutLevelCrossingIsQuiet(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 2, 0, nil)
	_, err := f.wf.Submit(task.ID, f.alice.ID, model.ApproverFor(f.bob.ID))
	require.NoError(t, err)
	_, err = f.wf.Approve(task.ID, f.bob.ID, 3, "")
	require.NoError(t, err)

	all, err := f.notifications.ListAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestClaimRewardIdempotent(t *testing.T) {
	f := setup(t)
	reward, err := f.rewards.Create("Movie night", "", 1, true)
	require.NoError(t, err)

	first, err := f.wf.ClaimReward(f.alice.ID, reward.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{reward.ID}, first.ClaimedRewards)

	second, err := f.wf.ClaimReward(f.alice.ID, reward.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ClaimedRewards, second.ClaimedRewards)

	// Exactly one reward notification despite two claims
	all, err := f.notifications.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.NotificationReward, all[0].Type)
}

func TestClaimRewardLevelGate(t *testing.T) {
	f := setup(t)
	reward, err := f.rewards.Create("Weekend trip", "", 5, true)
	require.NoError(t, err)

	_, err = f.wf.ClaimReward(f.alice.ID, reward.ID)
	var preErr PreconditionError
	require.ErrorAs(t, err, &preErr)
}

func TestSetPlayerStatsEmitsLevelUps(t *testing.T) {
	f := setup(t)

	updated, err := f.wf.SetPlayerStats(f.alice.ID, 700, nil)
	require.NoError(t, err)
	assert.Equal(t, 700, updated.Exp)
	assert.Equal(t, 4, updated.Level)

	all, err := f.notifications.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, want := range []int{2, 3, 4} {
		assert.Equal(t, model.NotificationLevelUp, all[i].Type)
		require.NotNil(t, all[i].Level)
		assert.Equal(t, want, *all[i].Level)
	}
}

func TestSetPlayerStatsRejectsNegativeExp(t *testing.T) {
	f := setup(t)

	_, err := f.wf.SetPlayerStats(f.alice.ID, -5, nil)
	var valErr ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestSetPlayerStatsClaimsRewards(t *testing.T) {
	f := setup(t)
	reward, err := f.rewards.Create("Movie night", "", 1, true)
	require.NoError(t, err)

	updated, err := f.wf.SetPlayerStats(f.alice.ID, 50, []int64{reward.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{reward.ID}, updated.ClaimedRewards)

	all, err := f.notifications.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.NotificationReward, all[0].Type)

	// Re-posting the same list adds nothing
	again, err := f.wf.SetPlayerStats(f.alice.ID, 50, []int64{reward.ID})
	require.NoError(t, err)
	assert.Equal(t, updated.ClaimedRewards, again.ClaimedRewards)
	all, err = f.notifications.ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestNegativeAwardFloorsExpAtZero(t *testing.T) {
	f := setup(t)

	// 30 days overdue, non-urgent: the late floor then halving gives -5
	overdue := time.Now().UTC().Add(-30 * 24 * time.Hour)
	task := f.createTask(t, f.alice.ID, 4, 0, &overdue)

	_, err := f.wf.Submit(task.ID, f.alice.ID, model.ApproverFor(f.bob.ID))
	require.NoError(t, err)
	archived, err := f.wf.Approve(task.ID, f.bob.ID, 2, "")
	require.NoError(t, err)
	assert.Negative(t, archived.ExpAwarded)

	owner, err := f.players.GetByID(f.alice.ID)
	require.NoError(t, err)
	assert.Zero(t, owner.Exp)
}

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func TestEditMergesFields(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 3, 2, tomorrow())

	updated, err := f.wf.Edit(task.ID, TaskEdit{
		MinutesWorked: intPtr(25),
		Commentary:    strPtr("scrubbed everything"),
	})
	require.NoError(t, err)
	assert.Equal(t, 25, updated.MinutesWorked)
	assert.Equal(t, "scrubbed everything", updated.Commentary)
	// Untouched fields keep their values
	assert.Equal(t, task.Title, updated.Title)
	assert.Equal(t, task.Difficulty, updated.Difficulty)
	assert.Equal(t, model.StatusOpen, updated.Status)
}

func TestEditRejectedWhileSubmitted(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 3, 2, tomorrow())
	_, err := f.wf.Submit(task.ID, f.alice.ID, model.ApproverFor(f.bob.ID))
	require.NoError(t, err)

	_, err = f.wf.Edit(task.ID, TaskEdit{MinutesWorked: intPtr(500)})
	var precondition PreconditionError
	require.ErrorAs(t, err, &precondition)

	// The frozen snapshot is untouched
	got, err := f.tasks.GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.MinutesWorked)
}

func TestRejectedSubmitWritesNothing(t *testing.T) {
	f := setup(t)
	task, err := f.tasks.Create("Wash dishes", 3, 2, tomorrow(), f.alice.ID, 5, "half done", "")
	require.NoError(t, err)

	// Bob is not the owner, so the whole merge-and-submit is refused
	_, err = f.wf.EditAndSubmit(task.ID, f.bob.ID, TaskEdit{MinutesWorked: intPtr(500)}, model.ApproverAnyoneValue())
	var authz AuthorizationError
	require.ErrorAs(t, err, &authz)

	got, err := f.tasks.GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.MinutesWorked)
	assert.Equal(t, "half done", got.Commentary)
	assert.Equal(t, model.StatusOpen, got.Status)
	assert.Equal(t, model.ApproverUnassigned, got.Approver.Kind)
}

func TestSubmitWithoutApproverWritesNothing(t *testing.T) {
	f := setup(t)
	task, err := f.tasks.Create("Wash dishes", 3, 2, tomorrow(), f.alice.ID, 5, "", "")
	require.NoError(t, err)

	_, err = f.wf.EditAndSubmit(task.ID, f.alice.ID, TaskEdit{MinutesWorked: intPtr(90)}, model.Approver{})
	var validation ValidationError
	require.ErrorAs(t, err, &validation)

	got, err := f.tasks.GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.MinutesWorked)
	assert.Equal(t, model.StatusOpen, got.Status)
}

func TestEditAndSubmitCarriesMergedProof(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 3, 2, tomorrow())

	submitted, err := f.wf.EditAndSubmit(task.ID, f.alice.ID, TaskEdit{
		MinutesWorked: intPtr(45),
		Commentary:    strPtr("sink and counters"),
	}, model.ApproverFor(f.bob.ID))
	require.NoError(t, err)
	assert.Equal(t, model.StatusSubmitted, submitted.Status)
	assert.Equal(t, 45, submitted.MinutesWorked)
	assert.Equal(t, "sink and counters", submitted.Commentary)
}

func TestEditAndSubmitRejectsInvalidEdit(t *testing.T) {
	f := setup(t)
	task := f.createTask(t, f.alice.ID, 3, 2, tomorrow())

	_, err := f.wf.EditAndSubmit(task.ID, f.alice.ID, TaskEdit{Difficulty: intPtr(9)}, model.ApproverFor(f.bob.ID))
	var validation ValidationError
	require.ErrorAs(t, err, &validation)

	got, err := f.tasks.GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Difficulty)
	assert.Equal(t, model.StatusOpen, got.Status)
}
