// messages.go — статические тексты бота.
package telegram

// Опрос набора игроков.
const (
	RecruitPollQuestion = "Кто будет принимать участие в игре?"
	RecruitPollYes      = "Буду"
	RecruitPollNo       = "Не буду"

	// Сколько секунд опрос остаётся открытым
	recruitPollOpenSeconds = 60
)

// Тексты команд.
const (
	MsgGreeting = "Привет! Я бот биржевой игры. Напиши «Правила игры», чтобы узнать, как играть."

	MsgRules = `Правила игры:
1. Отправь «Кто будет играть?» — бот создаст опрос. Участники, ответившие «Буду», становятся игроками.
2. «Начать игру» запускает ходы. Каждый ход цены акций меняются случайно.
3. Кнопками «Купить» и «Продать» торгуй акциями по текущим ценам. Баланс не может уйти в минус.
4. «Покинуть игру» выводит из игры, «Завершить игру» заканчивает её досрочно.
5. Когда ходы закончатся, побеждает игрок с наибольшим капиталом: баланс плюс стоимость акций.`

	MsgAbout = "Бот биржевой игры для групповых чатов. Торгуйте акциями, следите за рынком и обгоняйте друзей по капиталу."

	MsgUnknownChat = "Игра доступна только в групповых чатах."
)

// Тексты чат-панели администратора.
const (
	MsgAdminOnly    = "Команда доступна только администратору."
	MsgAdminHelp    = `Панель администратора:
«Акции» — список акций каталога
«Добавить <имя> <цена>» — добавить акцию
«Удалить <имя>» — удалить акцию
«Цена <имя> <цена>» — изменить стартовую цену акции
«Настройки» — текущие настройки игры
«Таймер <сек>» — длительность хода
«Ходы <n>» — число ходов в игре
«Баланс <n>» — стартовый баланс игрока
«Минимум <n>» / «Максимум <n>» — границы цены акций`
	MsgShareAdded   = "Акция добавлена."
	MsgShareRemoved = "Акция удалена."
	MsgShareExists  = "Такая акция уже есть."
	MsgShareMissing = "Акция не найдена."
	MsgSettingSaved = "Сохранено."
	// Подсказка после нажатия кнопки в меню настроек
	MsgSettingPromptFmt = "Отправь «%s», чтобы изменить настройку."
	MsgBadFormat    = "Не понял. Напиши «Админ», чтобы увидеть формат команд."

	// Информационный отказ: настройки и каталог не меняются при активной игре
	MsgGameInProgress = "Сейчас идёт игра. Изменения будут доступны после её завершения."
)
