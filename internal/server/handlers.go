package server

import (
	"net/http"
	"strings"

	"taskflow/internal/avatar"
	"taskflow/internal/domain/models"
	"taskflow/internal/query"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
)

const msgResetRequested = "If an account exists for that email, a reset code has been sent"

func (api *TaskAPI) register(ctx *gin.Context) {
	var req models.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, bindError(err))
		return
	}

	res, err := api.auth.Register(ctx.Request.Context(), req)
	if err != nil {
		api.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "User registered",
		"user":    res.User,
		"token":   res.Token,
	})
}

func (api *TaskAPI) login(ctx *gin.Context) {
	var req models.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, bindError(err))
		return
	}

	res, err := api.auth.Login(ctx.Request.Context(), req)
	if err != nil {
		api.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    res.User,
		"token":   res.Token,
	})
}

func (api *TaskAPI) forgotPassword(ctx *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, bindError(err))
		return
	}
	if err := api.auth.RequestPasswordReset(ctx.Request.Context(), req); err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": msgResetRequested})
}

func (api *TaskAPI) verifyResetCode(ctx *gin.Context) {
	var req models.VerifyResetCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, bindError(err))
		return
	}
	if err := api.auth.VerifyResetCode(ctx.Request.Context(), req); err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Code verified"})
}

func (api *TaskAPI) resetPassword(ctx *gin.Context) {
	var req models.ResetPasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, bindError(err))
		return
	}
	if err := api.auth.ResetPassword(ctx.Request.Context(), req); err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}

func (api *TaskAPI) getCurrentUser(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, currentUser(ctx))
}

// updateProfile accepts JSON or a multipart form carrying an optional
// "avatar" file.
func (api *TaskAPI) updateProfile(ctx *gin.Context) {
	var (
		req models.UpdateProfileRequest
		up  *avatar.Upload
	)
	if strings.HasPrefix(ctx.ContentType(), "multipart/") {
		if err := ctx.ShouldBind(&req); err != nil {
			api.respondError(ctx, bindError(err))
			return
		}
		fh, err := ctx.FormFile("avatar")
		switch {
		case err == nil:
			u := avatar.FromFileHeader(fh)
			up = &u
		case err != http.ErrMissingFile:
			api.respondError(ctx, bindError(err))
			return
		}
	} else if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, bindError(err))
		return
	}

	user, err := api.auth.UpdateProfile(ctx.Request.Context(), currentUser(ctx).ID, req, up)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, user)
}

func (api *TaskAPI) changePassword(ctx *gin.Context) {
	var req models.ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, bindError(err))
		return
	}
	if err := api.auth.ChangePassword(ctx.Request.Context(), currentUser(ctx).ID, req); err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

func (api *TaskAPI) deactivateAccount(ctx *gin.Context) {
	if err := api.auth.Deactivate(ctx.Request.Context(), currentUser(ctx).ID); err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Account deactivated successfully"})
}

func (api *TaskAPI) getLists(ctx *gin.Context) {
	lists, err := api.lists.List(ctx.Request.Context(), currentUser(ctx).ID)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, lists)
}

func (api *TaskAPI) createList(ctx *gin.Context) {
	var req models.ListRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, bindError(err))
		return
	}
	list, err := api.lists.Create(ctx.Request.Context(), currentUser(ctx).ID, req)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, list)
}

func (api *TaskAPI) renameList(ctx *gin.Context) {
	var req models.ListRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, bindError(err))
		return
	}
	list, err := api.lists.Rename(ctx.Request.Context(), currentUser(ctx).ID, ctx.Param("id"), req)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, list)
}

func (api *TaskAPI) deleteList(ctx *gin.Context) {
	if err := api.lists.Delete(ctx.Request.Context(), currentUser(ctx).ID, ctx.Param("id")); err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "List deleted"})
}

func (api *TaskAPI) getTasks(ctx *gin.Context) {
	tasks, err := api.tasks.List(ctx.Request.Context(), currentUser(ctx).ID)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, tasks)
}

func (api *TaskAPI) createTask(ctx *gin.Context) {
	var req models.CreateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, bindError(err))
		return
	}
	task, err := api.tasks.Create(ctx.Request.Context(), currentUser(ctx).ID, &req)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, task)
}

func (api *TaskAPI) getTaskByID(ctx *gin.Context) {
	task, err := api.tasks.Get(ctx.Request.Context(), currentUser(ctx).ID, ctx.Param("id"))
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, task)
}

func (api *TaskAPI) updateTask(ctx *gin.Context) {
	var patch models.TaskPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		api.respondError(ctx, bindError(err))
		return
	}
	task, err := api.tasks.Update(ctx.Request.Context(), currentUser(ctx).ID, ctx.Param("id"), &patch)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, task)
}

func (api *TaskAPI) toggleImportant(ctx *gin.Context) {
	task, err := api.tasks.ToggleImportant(ctx.Request.Context(), currentUser(ctx).ID, ctx.Param("id"))
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, task)
}

func (api *TaskAPI) deleteTask(ctx *gin.Context) {
	if err := api.tasks.Delete(ctx.Request.Context(), currentUser(ctx).ID, ctx.Param("id")); err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

func (api *TaskAPI) searchTasks(ctx *gin.Context) {
	tasks, err := api.tasks.Search(ctx.Request.Context(), currentUser(ctx).ID, ctx.Query("q"))
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, tasks)
}

func (api *TaskAPI) upcomingTasks(ctx *gin.Context) {
	days := query.ParseDays(ctx.Query("days"))
	tasks, err := api.tasks.Upcoming(ctx.Request.Context(), currentUser(ctx).ID, days)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, tasks)
}

func (api *TaskAPI) tasksByRange(ctx *gin.Context) {
	tasks, err := api.tasks.Range(ctx.Request.Context(), currentUser(ctx).ID, ctx.Query("start"), ctx.Query("end"))
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, tasks)
}

func (api *TaskAPI) viewTasks(ctx *gin.Context) {
	var req service.ViewRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.respondError(ctx, bindError(err))
		return
	}
	tasks, err := api.tasks.View(ctx.Request.Context(), currentUser(ctx).ID, req)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, tasks)
}
