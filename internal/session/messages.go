package session

const (
	msgWelcome = "Benvenuto su MuoVErsi, uno strumento avanzato per chi prende i trasporti pubblici a Venezia.\n\n" + hint

	msgCancelled = "Conversazione interrotta. Ti ritrovi nella schermata iniziale di MuoVErsi.\n\n" + hint

	hint = "Inizia la tua ricerca con /fermata_aut per il servizio automobilistico, o /fermata_nav per quello di navigazione."

	msgChooseService   = "Quale servizio ti interessa?"
	msgInvalidService  = "Servizio non valido. Riprova."
	msgEnterStop       = "Inizia digitando il nome della fermata del servizio %s oppure invia la posizione attuale per vedere le fermate più vicine.\n\n"
	msgStopNotFound    = "Non abbiamo trovato la fermata che hai inserito. Riprova."
	msgChooseStop      = "Scegli la fermata"
	msgHereAreTimes    = "Ecco gli orari"
	msgNotUnderstood   = "Scelta non compresa. Riprova."
	msgUnavailable     = "Si è verificato un errore, riprova tra poco."
	msgUnknownCommand  = "Comando non riconosciuto."
	labelSendLocation  = "Invia posizione"
	placeholderService = "Servizio"
	placeholderPos     = "Posizione attuale"
)
