package documentapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	types "github.com/reisap/rest-hapi/types/http"
)

func handleError(w http.ResponseWriter, err *types.CommonError) {
	if err.Kind() == types.KindInternal || err.Kind() == types.KindServerTimeout {
		log.Error().Msgf("failed to serve request: %v", err.Err())
	}
	w.WriteHeader(err.HTTPCode())
	w.Write(types.SerializeError(err))
}

func respond(w http.ResponseWriter, success any) {
	payload, err := json.Marshal(&types.CommonResponse{
		Success: success,
	})
	if err != nil {
		handleError(w, types.NewError(types.KindInternal, "server encounter an error"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}
