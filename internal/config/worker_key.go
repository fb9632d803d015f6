package config

type WorkerKeyStruct struct {
	PersistAnswersQueue       string
	PersistResultsQueue       string
	PersistProctorQueue       string
	PersistQuestionOrderQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:       "persist_answers_queue",
	PersistResultsQueue:       "persist_results_queue",
	PersistProctorQueue:       "persist_proctor_queue",
	PersistQuestionOrderQueue: "persist_question_order_queue",
}
